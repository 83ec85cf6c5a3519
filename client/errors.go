package client

import (
	"errors"
	"fmt"
)

// Validation errors raised before any network call is made.
var (
	// ErrUnsupportedFormat means the file extension is not an uploadable
	// image format.
	ErrUnsupportedFormat = errors.New("invalid file format, only JPG/JPEG/PNG/WEBP files are supported")

	// ErrMediaNotPhoto means a media id resolved to something other than a
	// photo.
	ErrMediaNotPhoto = errors.New("media is not a photo")

	// ErrMissingMediaReference means a reshared story media carries no
	// source media id.
	ErrMissingMediaReference = errors.New("story media requires a source media id")

	// ErrNoSession means stored settings do not contain a usable login.
	ErrNoSession = errors.New("no valid session in settings")
)

// DownloadError reports a non-2xx response while fetching a photo.
type DownloadError struct {
	URL        string
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("photo download failed: status %d for %s", e.StatusCode, e.URL)
}

// UploadError reports a rejected raw byte transfer. Body carries the server
// response for protocol-drift diagnostics.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("photo upload rejected: status %d: %s", e.StatusCode, e.Body)
}

// ConfigureError means every configure attempt for a feed photo was
// exhausted. Response holds the last server reply, Err the last attempt's
// error.
type ConfigureError struct {
	Response *APIResponse
	Err      error
}

func (e *ConfigureError) Error() string {
	if e.Response != nil && len(e.Response.RawBody) > 0 {
		return fmt.Sprintf("photo configure failed: %s", e.Response.RawBody)
	}
	return "photo configure failed"
}

func (e *ConfigureError) Unwrap() error {
	return e.Err
}

// ConfigureStoryError means every configure attempt for a story photo was
// exhausted. Response holds the last server reply, Err the last attempt's
// error.
type ConfigureStoryError struct {
	Response *APIResponse
	Err      error
}

func (e *ConfigureStoryError) Error() string {
	if e.Response != nil && len(e.Response.RawBody) > 0 {
		return fmt.Sprintf("story configure failed: %s", e.Response.RawBody)
	}
	return "story configure failed"
}

func (e *ConfigureStoryError) Unwrap() error {
	return e.Err
}

// LinkValidationError reports a failed swipe-up link validation round-trip.
type LinkValidationError struct {
	URL string
	Err error
}

func (e *LinkValidationError) Error() string {
	return fmt.Sprintf("link validation failed for %s: %v", e.URL, e.Err)
}

func (e *LinkValidationError) Unwrap() error {
	return e.Err
}
