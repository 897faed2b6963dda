package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-jp-digitizer/internal/decoder"
	apperrors "go-jp-digitizer/internal/errors"
	"go-jp-digitizer/internal/storage"
	"go-jp-digitizer/pkg/validation"
)

// ImageRepository resolves a remote image location into a raw pipeline input
type ImageRepository interface {
	Fetch(ctx context.Context, imageURL string) (decoder.ImageInput, error)
}

// RemoteImageRepository routes URLs on the configured storage account to blob
// storage and everything else, other accounts included, to HTTP
type RemoteImageRepository struct {
	validator *validation.URLValidator
	http      storage.ImageFetcher
	blobs     storage.BlobStorage
}

// NewRemoteImageRepository builds the repository; blobs may be nil when Azure is not configured
func NewRemoteImageRepository(validator *validation.URLValidator, http storage.ImageFetcher, blobs storage.BlobStorage) *RemoteImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &RemoteImageRepository{
		validator: validator,
		http:      http,
		blobs:     blobs,
	}
}

func (r *RemoteImageRepository) Fetch(ctx context.Context, imageURL string) (decoder.ImageInput, error) {
	imageURL = strings.TrimSpace(imageURL)
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		return decoder.ImageInput{}, invalidURL(err)
	}

	var (
		img storage.FetchedImage
		err error
	)
	if r.blobs != nil && r.blobs.Serves(imageURL) {
		img, err = r.blobs.GetImage(ctx, imageURL)
	} else {
		img, err = r.http.FetchImage(ctx, imageURL)
	}
	if err != nil {
		return decoder.ImageInput{}, wrapFetchError(imageURL, err)
	}
	if len(img.Data) == 0 {
		return decoder.ImageInput{}, apperrors.NewInvalidInputError("image at URL is empty", ErrImageNotFound)
	}

	return decoder.RawInput(img.Data, img.ContentType), nil
}

// invalidURL keeps the validator's message and puts ErrInvalidImageURL in the chain
func invalidURL(err error) error {
	appErr, ok := apperrors.As(err)
	if !ok {
		return apperrors.NewInvalidInputError("invalid image URL", fmt.Errorf("%w: %w", ErrInvalidImageURL, err))
	}
	cause := ErrInvalidImageURL
	if appErr.Cause != nil {
		cause = fmt.Errorf("%w: %w", ErrInvalidImageURL, appErr.Cause)
	}
	return apperrors.NewInvalidInputError(appErr.Message, cause)
}

func wrapFetchError(imageURL string, err error) error {
	if errors.Is(err, storage.ErrBlockedDestination) {
		return apperrors.NewInvalidInputError("image URL host not allowed", fmt.Errorf("%w: %w", ErrInvalidImageURL, err))
	}
	if errors.Is(err, storage.ErrBlobNotFound) || strings.Contains(err.Error(), "status code 404") {
		return apperrors.NewInvalidInputError(fmt.Sprintf("no image found at %s", imageURL), fmt.Errorf("%w: %v", ErrImageNotFound, err))
	}
	if strings.Contains(err.Error(), "client error") || strings.Contains(err.Error(), "invalid") {
		return apperrors.NewInvalidInputError("image URL could not be fetched", err)
	}
	return apperrors.NewRemoteFailureError("image source unavailable", fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err))
}
