// Package decoder turns inbound image payloads into a canonical in-memory
// handle that both OCR engines accept without re-encoding.
package decoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SourceEncoding tells how the payload arrived at the request boundary
type SourceEncoding string

const (
	EncodingRaw     SourceEncoding = "raw"
	EncodingDataURI SourceEncoding = "dataUri"
)

// ErrorKind classifies decode failures
type ErrorKind string

const (
	EmptyPayload      ErrorKind = "EmptyPayload"
	MalformedEncoding ErrorKind = "MalformedEncoding"
)

// DecodeError is returned for any payload that cannot be turned into an image handle
type DecodeError struct {
	Kind   ErrorKind
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ImageInput is the immutable payload handed over by the transport layer.
// Use RawInput or DataURIInput to build one.
type ImageInput struct {
	bytes    []byte
	mimeType string
	encoding SourceEncoding
	dataURI  string
}

// RawInput wraps already-binary image bytes with an optional declared MIME type
func RawInput(data []byte, mimeType string) ImageInput {
	return ImageInput{
		bytes:    append([]byte(nil), data...),
		mimeType: strings.TrimSpace(mimeType),
		encoding: EncodingRaw,
	}
}

// DataURIInput wraps a data:<mime>;base64,<payload> string
func DataURIInput(uri string) ImageInput {
	return ImageInput{
		bytes:    []byte(uri),
		encoding: EncodingDataURI,
		dataURI:  strings.TrimSpace(uri),
	}
}

func (in ImageInput) Encoding() SourceEncoding { return in.encoding }
func (in ImageInput) MIMEType() string         { return in.mimeType }
func (in ImageInput) Len() int                 { return len(in.bytes) }

// IsZero reports whether the input carries no payload at all
func (in ImageInput) IsZero() bool {
	return len(in.bytes) == 0
}

// DecodedImage carries raw bytes and the resolved MIME type.
// Width and Height are zero when the format is not one of the registered decoders.
type DecodedImage struct {
	Bytes    []byte
	MIMEType string
	Width    int
	Height   int
}

// Decode validates the payload and resolves its MIME type. It has no side effects.
func Decode(in ImageInput) (DecodedImage, error) {
	if in.IsZero() {
		return DecodedImage{}, &DecodeError{Kind: EmptyPayload, Reason: "image payload is empty"}
	}

	var (
		data     []byte
		mimeType string
		err      error
	)
	switch in.encoding {
	case EncodingDataURI:
		data, mimeType, err = parseDataURI(in.dataURI)
		if err != nil {
			return DecodedImage{}, err
		}
	case EncodingRaw:
		data = in.bytes
		// A declared type that does not parse is ignored and sniffed below
		if in.mimeType != "" {
			if mt, err := normalizeMIME(in.mimeType); err == nil {
				mimeType = mt
			}
		}
	default:
		return DecodedImage{}, &DecodeError{Kind: MalformedEncoding, Reason: fmt.Sprintf("unknown source encoding %q", in.encoding)}
	}

	if len(data) == 0 {
		return DecodedImage{}, &DecodeError{Kind: EmptyPayload, Reason: "image payload is empty"}
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = SniffMIME(data)
	}

	out := DecodedImage{Bytes: data, MIMEType: mimeType}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		out.Width, out.Height = cfg.Width, cfg.Height
	}
	return out, nil
}

// parseDataURI splits data:<mime>;base64,<payload>
func parseDataURI(s string) ([]byte, string, error) {
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return nil, "", &DecodeError{Kind: MalformedEncoding, Reason: "data URI has no comma separator"}
	}
	header, payload := s[:idx], s[idx+1:]
	if !strings.HasPrefix(strings.ToLower(header), "data:") {
		return nil, "", &DecodeError{Kind: MalformedEncoding, Reason: "data URI must start with data:"}
	}
	meta := header[len("data:"):]
	semi := strings.LastIndexByte(meta, ';')
	if semi < 0 || !strings.EqualFold(meta[semi+1:], "base64") {
		return nil, "", &DecodeError{Kind: MalformedEncoding, Reason: "data URI must be base64 encoded"}
	}
	mimeType, err := normalizeMIME(meta[:semi])
	if err != nil {
		return nil, "", err
	}

	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var urlErr error
		if data, urlErr = base64.URLEncoding.DecodeString(payload); urlErr != nil {
			return nil, "", &DecodeError{Kind: MalformedEncoding, Reason: "invalid base64 payload", Cause: err}
		}
	}
	return data, mimeType, nil
}

func normalizeMIME(raw string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
	if err != nil {
		return "", &DecodeError{Kind: MalformedEncoding, Reason: fmt.Sprintf("unparseable MIME type %q", raw), Cause: err}
	}
	if !strings.Contains(mediaType, "/") {
		return "", &DecodeError{Kind: MalformedEncoding, Reason: fmt.Sprintf("unparseable MIME type %q", raw)}
	}
	return mediaType, nil
}

// SniffMIME detects the content type from the leading bytes
func SniffMIME(data []byte) string {
	ct := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}
