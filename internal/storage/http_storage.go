package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"syscall"
	"time"

	"go-jp-digitizer/pkg/validation"
)

// DefaultMaxImageBytes caps a single downloaded image
const DefaultMaxImageBytes int64 = 10 << 20

const maxAttempts = 3

// ErrBlockedDestination is returned when a redirect or resolved address is refused.
// It is never retried.
var ErrBlockedDestination = errors.New("destination not allowed")

// FetchedImage is an undecoded image body together with the content type the source declared
type FetchedImage struct {
	Data        []byte
	ContentType string
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (FetchedImage, error)
}

// HTTPImageFetcher downloads images over HTTP with a bounded retry on transient errors
type HTTPImageFetcher struct {
	client     *http.Client
	maxBytes   int64
	backoff    time.Duration
	userAgent  string
	publicOnly bool
	checkURL   func(string) error
}

// HTTPOption customizes an HTTPImageFetcher
type HTTPOption func(*HTTPImageFetcher)

// WithBackoff sets the base delay between attempts; attempt n waits n*d
func WithBackoff(d time.Duration) HTTPOption {
	return func(h *HTTPImageFetcher) { h.backoff = d }
}

func WithMaxBytes(n int64) HTTPOption {
	return func(h *HTTPImageFetcher) { h.maxBytes = n }
}

// WithPublicAddressesOnly refuses connections to non-public addresses
// after DNS resolution
func WithPublicAddressesOnly() HTTPOption {
	return func(h *HTTPImageFetcher) { h.publicOnly = true }
}

// WithRedirectCheck validates every redirect target before it is followed
func WithRedirectCheck(check func(string) error) HTTPOption {
	return func(h *HTTPImageFetcher) { h.checkURL = check }
}

// NewHTTPImageFetcher creates an HTTP image fetcher with the given overall timeout
func NewHTTPImageFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	h := &HTTPImageFetcher{
		maxBytes:  DefaultMaxImageBytes,
		backoff:   time.Second,
		userAgent: "go-jp-digitizer/1.0",
	}
	for _, opt := range opts {
		opt(h)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if h.publicOnly {
		dialer.Control = publicAddressOnly
	}
	transport := &http.Transport{
		DialContext: dialer.DialContext,

		// Single image downloads, few hosts
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h.client = &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects (limit: 3)")
			}
			if h.checkURL != nil {
				if err := h.checkURL(req.URL.String()); err != nil {
					return fmt.Errorf("%w: redirect to %s: %v", ErrBlockedDestination, req.URL.Redacted(), err)
				}
			}
			return nil
		},
	}
	return h
}

func publicAddressOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedDestination, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !validation.IsPublicIP(ip) {
		return fmt.Errorf("%w: non-public address %s", ErrBlockedDestination, host)
	}
	return nil
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return FetchedImage{}, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, image/gif, image/bmp, image/tiff, */*")
	req.Header.Set("User-Agent", h.userAgent)

	var (
		resp    *http.Response
		lastErr error
	)

	// Only 5xx and transport errors are retried
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err = h.client.Do(req)
		if errors.Is(err, ErrBlockedDestination) {
			return FetchedImage{}, fmt.Errorf("failed to fetch image: %w", err)
		}
		if err != nil {
			lastErr = err
			resp = nil
		} else if resp.StatusCode == http.StatusOK {
			break
		} else {
			resp.Body.Close()
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return FetchedImage{}, fmt.Errorf("failed to fetch image: client error: status code %d", resp.StatusCode)
			}
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
			resp = nil
		}

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return FetchedImage{}, fmt.Errorf("failed to fetch image: %w", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * h.backoff):
			}
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("unknown error")
		}
		return FetchedImage{}, fmt.Errorf("failed to fetch image after %d attempts: %w", maxAttempts, lastErr)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return FetchedImage{}, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return FetchedImage{}, fmt.Errorf("image exceeds %d bytes", h.maxBytes)
	}

	return FetchedImage{Data: data, ContentType: mediaType(resp.Header.Get("Content-Type"))}, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}
