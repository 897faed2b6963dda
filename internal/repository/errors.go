package repository

import "errors"

var (
	// ErrInvalidImageURL indicates the URL failed validation
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrImageNotFound indicates the source has no image at the URL
	ErrImageNotFound = errors.New("image not found")

	// ErrRepositoryUnavailable indicates the source could not be reached
	ErrRepositoryUnavailable = errors.New("image source unavailable")
)
