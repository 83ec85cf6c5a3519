package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/admariner/instagrapi/internal/imageprep"
	"github.com/admariner/instagrapi/internal/retry"
)

const (
	photoMaxSide = 1080

	// Story photos must fit the reel aspect band and absolute size.
	storyMinAspectRatio = 9.0 / 16.0
	storyMaxAspectRatio = 90.0 / 47.0
	storyMaxWidth       = 1080
	storyMaxHeight      = 1920

	retryContext     = `{"num_step_auto_retry":0,"num_reupload":0,"num_step_manual_retry":0}`
	imageCompression = `{"lib_name":"moz","lib_version":"3.1.m","quality":"80"}`

	// Navigation trail the native app reports when sharing from the gallery.
	feedNavChain = "8rL:self_profile:4,ProfileMediaTabFragment:self_profile:5," +
		"UniversalCreationMenuFragment:universal_creation_menu:7," +
		"ProfileMediaTabFragment:self_profile:8," +
		"MediaCaptureFragment:tabbed_gallery_camera:9," +
		"Dd3:photo_filter:10," +
		"FollowersShareFragment:metadata_followers_share:11"
)

// Content types by accepted file extension.
var photoContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// errConfigurePending marks a configure round that came back without a media
// record: the server has not finished processing the uploaded bytes yet.
var errConfigurePending = errors.New("media not ready yet")

// UploadHandle identifies raw bytes already transferred to the upload
// service, together with the source image dimensions the configure step must
// repeat. It is consumed exactly once by a configure call.
type UploadHandle struct {
	ID     string
	Width  int
	Height int
}

// RuploadOptions tune a raw photo upload.
type RuploadOptions struct {
	// UploadID reuses an externally generated upload session id. Empty
	// means a fresh one is generated. Retries of the same logical post must
	// reuse the same id.
	UploadID string
	// ToAlbum marks the photo as one item of a multi-image album.
	ToAlbum bool
	// ForStory constrains image preparation to the story aspect band.
	ForStory bool
	// Progress receives transfer progress events.
	Progress ProgressReporter
}

// PostMetadata carries the optional metadata of a feed post.
type PostMetadata struct {
	// UploadID reuses an externally generated upload session id.
	UploadID string
	// Usertags are the users tagged on the photo.
	Usertags []Usertag
	// Location tags the post with a place.
	Location *Location
	// Extra fields are merged into the configure payload last and may
	// override any computed field. Escape hatch for undocumented server
	// parameters.
	Extra map[string]any
	// Progress receives upload progress events.
	Progress ProgressReporter
}

// Usertag pins a user to a normalized position on the photo.
type Usertag struct {
	User UserShort `json:"user"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// PhotoRupload transfers the raw photo bytes and returns the upload handle
// the configure step needs. The reported dimensions are read back from the
// local file, not from the server response.
func (c *Client) PhotoRupload(ctx context.Context, path string, opts RuploadOptions) (*UploadHandle, error) {
	ext := strings.ToLower(filepath.Ext(path))
	contentType, ok := photoContentTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	uploadID := opts.UploadID
	if uploadID == "" {
		uploadID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}

	waterfallID := uuid.New().String()
	// upload name example: "1576102477530_0_7823256191"
	uploadName := fmt.Sprintf("%s_0_%d", uploadID, rand.Int63n(9000000000)+1000000000)

	ruploadParams := map[string]string{
		"retry_context":     retryContext,
		"media_type":        "1",
		"xsharing_user_ids": "[]",
		"upload_id":         uploadID,
		"image_compression": imageCompression,
	}
	if opts.ToAlbum {
		ruploadParams["is_sidecar"] = "1"
	}
	paramsJSON, err := json.Marshal(ruploadParams)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rupload params: %w", err)
	}

	if opts.Progress != nil {
		opts.Progress.Report(ProgressReport{Step: ProgressStepPrepare, Message: "Preparing image"})
	}

	prepOpts := imageprep.Options{MaxSide: photoMaxSide}
	if opts.ForStory {
		prepOpts.MinAspectRatio = storyMinAspectRatio
		prepOpts.MaxAspectRatio = storyMaxAspectRatio
		prepOpts.MaxWidth = storyMaxWidth
		prepOpts.MaxHeight = storyMaxHeight
	}

	photoData, _, _, err := c.ImagePreparer.Prepare(path, prepOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare photo: %w", err)
	}

	var body io.Reader = bytes.NewReader(photoData)
	if opts.Progress != nil {
		total := int64(len(photoData))
		opts.Progress.Report(ProgressReport{Step: ProgressStepUpload, TotalBytes: total})
		body = &progressReader{
			reader: body,
			total:  total,
			onProg: func(read, total int64) {
				opts.Progress.Report(ProgressReport{
					Step:       ProgressStepUpload,
					BytesSent:  read,
					TotalBytes: total,
				})
			},
		}
	}

	uploadURL := c.uploadBaseURL + "rupload_igphoto/" + uploadName
	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = int64(len(photoData))

	c.applyHeaders(req)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Instagram-Rupload-Params", string(paramsJSON))
	req.Header.Set("X_FB_PHOTO_WATERFALL_ID", waterfallID)
	req.Header.Set("X-Entity-Type", contentType)
	req.Header.Set("Offset", "0")
	req.Header.Set("X-Entity-Name", uploadName)
	req.Header.Set("X-Entity-Length", strconv.Itoa(len(photoData)))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photo upload failed: %w", err)
	}
	defer resp.Body.Close()

	var respReader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		respReader = gzReader
	}

	respBody, err := io.ReadAll(respReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	c.updateCookies(resp.Cookies())
	c.updateFromResponseHeaders(resp.Header)
	c.logRequest("POST", "rupload_igphoto/"+uploadName, resp.StatusCode, respBody)

	if resp.StatusCode != http.StatusOK {
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	width, height, err := imageprep.Dimensions(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo dimensions: %w", err)
	}

	return &UploadHandle{ID: uploadID, Width: width, Height: height}, nil
}

// PhotoConfigure commits previously uploaded bytes as a feed post. It issues
// a single request; retry lives in PhotoUpload.
func (c *Client) PhotoConfigure(ctx context.Context, handle *UploadHandle, caption string, meta PostMetadata) (*APIResponse, error) {
	locationJSON, err := c.locationBuild(ctx, meta.Location)
	if err != nil {
		return nil, err
	}

	usertags := make([]map[string]any, 0, len(meta.Usertags))
	for _, tag := range meta.Usertags {
		usertags = append(usertags, map[string]any{
			"user_id":  tag.User.Pk,
			"position": []float64{tag.X, tag.Y},
		})
	}
	usertagsJSON, err := json.Marshal(map[string]any{"in": usertags})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal usertags: %w", err)
	}

	now := time.Now()
	data := map[string]any{
		"timezone_offset":            strconv.Itoa(c.TimezoneOffset),
		"camera_model":               c.DeviceSettings.Model,
		"camera_make":                c.DeviceSettings.Manufacturer,
		"scene_type":                 "?",
		"nav_chain":                  feedNavChain,
		"date_time_original":         dateTimeOriginal(now),
		"date_time_digitalized":      dateTimeOriginal(now),
		"creation_logger_session_id": c.ClientSessionID,
		"scene_capture_type":         "standard",
		"software":                   c.softwareString(),
		"multi_sharing":              "1",
		"location":                   locationJSON,
		"media_folder":               "Camera",
		"source_type":                "4",
		"caption":                    caption,
		"upload_id":                  handle.ID,
		"device":                     c.deviceInfo(),
		"usertags":                   string(usertagsJSON),
		"edits": map[string]any{
			"crop_original_size": []float64{float64(handle.Width), float64(handle.Height)},
			"crop_center":        []float64{0.0, 0.0},
			"crop_zoom":          1.0,
		},
		"extra": map[string]any{
			"source_width":  handle.Width,
			"source_height": handle.Height,
		},
	}
	for k, v := range meta.Extra {
		data[k] = v
	}

	return c.privateRequest(ctx, "media/configure/", c.withExtraData(data))
}

// PhotoUpload uploads a local photo and configures it as a feed post. The
// raw bytes are transferred once; the configure call is retried on a fixed
// interval while the server finishes processing them.
func (c *Client) PhotoUpload(ctx context.Context, path, caption string, meta PostMetadata) (*Media, error) {
	handle, err := c.PhotoRupload(ctx, path, RuploadOptions{
		UploadID: meta.UploadID,
		Progress: meta.Progress,
	})
	if err != nil {
		return nil, err
	}

	var (
		last    *APIResponse
		media   *Media
		attempt int
	)

	op := func() error {
		attempt++
		c.log.Debug().Int("attempt", attempt).Str("path", path).Msg("configuring photo")
		if meta.Progress != nil {
			meta.Progress.Report(ProgressReport{
				Step:     ProgressStepConfigure,
				Attempt:  attempt,
				Attempts: int(c.ConfigureRetry.Attempts),
			})
		}

		resp, err := c.PhotoConfigure(ctx, handle, caption, meta)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				last = apiErr.Response
				return err
			}
			return retry.Permanent(err)
		}

		last = resp
		m, err := extractMedia(resp)
		if err != nil {
			return retry.Permanent(err)
		}
		if m == nil {
			return errConfigurePending
		}

		media = m
		return nil
	}

	if err := retry.Do(ctx, c.log, "photo configure", op, c.ConfigureRetry); err != nil {
		if isConfigureExhausted(err) {
			return nil, &ConfigureError{Response: last, Err: err}
		}
		return nil, err
	}

	if meta.Progress != nil {
		meta.Progress.Report(ProgressReport{Step: ProgressStepDone})
	}

	return media, nil
}

// isConfigureExhausted reports whether the retry budget ran out on a
// retryable condition, as opposed to a permanent failure that must surface
// as itself.
func isConfigureExhausted(err error) bool {
	if errors.Is(err, errConfigurePending) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// dateTimeOriginal renders a capture timestamp the way the platform encodes
// EXIF-style datetimes.
func dateTimeOriginal(t time.Time) string {
	return t.Format("20060102T150405.000Z")
}
