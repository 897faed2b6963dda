package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"go-jp-digitizer/pkg/validation"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// ErrBlobNotFound is returned when the container or blob does not exist
var ErrBlobNotFound = errors.New("blob not found")

// BlobStorage reads images from one storage account. Serves reports whether a
// URL belongs to that account; GetImage rejects any other URL.
type BlobStorage interface {
	Serves(blobURL string) bool
	GetImage(ctx context.Context, blobURL string) (FetchedImage, error)
}

type azureStorage struct {
	client   *azblob.Client
	host     string
	maxBytes int64
}

// NewAzureStorage authenticates with a shared account key
func NewAzureStorage(accountName string, accountKey string) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure storage credential: %w", err)
	}

	host := strings.ToLower(accountName) + validation.AzureBlobHostSuffix
	client, err := azblob.NewClientWithSharedKeyCredential(
		"https://"+host,
		credential,
		&azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{MaxRetries: 2},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &azureStorage{client: client, host: host, maxBytes: DefaultMaxImageBytes}, nil
}

func (s *azureStorage) Serves(blobURL string) bool {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), s.host)
}

func (s *azureStorage) GetImage(ctx context.Context, blobURL string) (FetchedImage, error) {
	containerName, blobName, err := parseBlobURL(blobURL, s.host)
	if err != nil {
		return FetchedImage{}, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return FetchedImage{}, fmt.Errorf("%w: %s/%s", ErrBlobNotFound, containerName, blobName)
		}
		return FetchedImage{}, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return FetchedImage{}, fmt.Errorf("failed to read blob: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return FetchedImage{}, fmt.Errorf("image exceeds %d bytes", s.maxBytes)
	}

	var contentType string
	if resp.ContentType != nil {
		contentType = mediaType(*resp.ContentType)
	}
	return FetchedImage{Data: data, ContentType: contentType}, nil
}

// parseBlobURL accepts https://<host>/<container>/<blob path> and the legacy
// form /<container>?blob=<name>. URLs for any other host are rejected.
func parseBlobURL(blobURL, host string) (string, string, error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	if !strings.EqualFold(parsed.Hostname(), host) {
		return "", "", fmt.Errorf("invalid blob URL: host %q is not the configured account %q", parsed.Hostname(), host)
	}

	path := strings.TrimPrefix(parsed.Path, "/")
	containerName, blobName, _ := strings.Cut(path, "/")
	if blobName == "" {
		blobName = parsed.Query().Get("blob")
	}
	if containerName == "" || blobName == "" {
		return "", "", fmt.Errorf("invalid blob URL: expected /<container>/<blob>, got %q", parsed.Path)
	}
	return containerName, blobName, nil
}
