package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/admariner/instagrapi/internal/retry"
)

// Device capability set reported alongside a story configure. The server
// rejects configures that omit it.
const storySupportedCapabilities = `[` +
	`{"name":"SUPPORTED_SDK_VERSIONS","value":"119.0,120.0,121.0,122.0,123.0,124.0,125.0,126.0,127.0,128.0,129.0,130.0,131.0,132.0,133.0,134.0,135.0,136.0,137.0,138.0,139.0,140.0,141.0,142.0,143.0,144.0,145.0,146.0,147.0,148.0,149.0,150.0,151.0,152.0,153.0,154.0"},` +
	`{"name":"FACE_TRACKER_VERSION","value":"14"},` +
	`{"name":"segmentation","value":"segmentation_enabled"},` +
	`{"name":"COMPRESSION","value":"ETC2_COMPRESSION"},` +
	`{"name":"world_tracker","value":"world_tracker_enabled"},` +
	`{"name":"gyroscope","value":"gyroscope_enabled"}` +
	`]`

// Sticker marker ids reported in story_sticker_ids.
const (
	markerHashtag  = "hashtag_sticker"
	markerLocation = "location_sticker"
	markerLink     = "link_sticker_default"
	markerPoll     = "polling_sticker_v2"
)

// PhotoUploadToStory uploads a local photo and publishes it as a story with
// the given overlays. The configure call is retried on a fixed interval
// while the server finishes processing the uploaded bytes; link validation
// failures and malformed overlays abort immediately.
func (c *Client) PhotoUploadToStory(ctx context.Context, path string, meta StoryMetadata) (*Story, error) {
	handle, err := c.PhotoRupload(ctx, path, RuploadOptions{
		UploadID: meta.UploadID,
		ForStory: true,
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
		c.log.Debug().Int("attempt", attempt).Str("path", path).Msg("configuring story photo")
		if meta.Progress != nil {
			meta.Progress.Report(ProgressReport{
				Step:     ProgressStepConfigure,
				Attempt:  attempt,
				Attempts: int(c.ConfigureRetry.Attempts),
			})
		}

		resp, err := c.PhotoConfigureToStory(ctx, handle, meta)
		if err != nil {
			// A rejected link wraps the server error but must not be
			// retried.
			var linkErr *LinkValidationError
			if errors.As(err, &linkErr) {
				return retry.Permanent(err)
			}
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

	if err := retry.Do(ctx, c.log, "story configure", op, c.ConfigureRetry); err != nil {
		var linkErr *LinkValidationError
		if errors.As(err, &linkErr) {
			return nil, err
		}
		if isConfigureExhausted(err) {
			return nil, &ConfigureStoryError{Response: last, Err: err}
		}
		return nil, err
	}

	if meta.Progress != nil {
		meta.Progress.Report(ProgressReport{Step: ProgressStepDone})
	}

	return &Story{
		Media:     *media,
		Mentions:  meta.Mentions,
		Locations: meta.Locations,
		Links:     meta.Links,
		Hashtags:  meta.Hashtags,
		Stickers:  meta.Stickers,
		Medias:    meta.Medias,
		Polls:     meta.Polls,
	}, nil
}

// PhotoConfigureToStory commits previously uploaded bytes as a story frame.
// Place stickers are resolved to full location records and a swipe-up link,
// when present, is validated with the server before the configure request is
// sent.
func (c *Client) PhotoConfigureToStory(ctx context.Context, handle *UploadHandle, meta StoryMetadata) (*APIResponse, error) {
	if len(meta.Locations) > 0 {
		resolved := make([]StoryLocation, len(meta.Locations))
		copy(resolved, meta.Locations)
		for i := range resolved {
			loc, err := c.LocationComplete(ctx, resolved[i].Location)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve story location: %w", err)
			}
			resolved[i].Location = loc
		}
		meta.Locations = resolved
	}

	if len(meta.Links) > 0 {
		if err := c.validateReelURL(ctx, meta.Links[0].WebURI); err != nil {
			return nil, err
		}
	}

	data, err := c.buildStoryConfig(handle, meta)
	if err != nil {
		return nil, err
	}

	return c.privateRequest(ctx, "media/configure_to_story/", c.withDefaultData(data))
}

// validateReelURL asks the server whether a URL is allowed as a story link.
func (c *Client) validateReelURL(ctx context.Context, rawURL string) error {
	_, err := c.privateRequest(ctx, "media/validate_reel_url/", map[string]any{
		"url":   rawURL,
		"_uid":  strconv.FormatInt(c.UserID(), 10),
		"_uuid": c.UUID,
	})
	if err != nil {
		return &LinkValidationError{URL: rawURL, Err: err}
	}
	return nil
}

// buildStoryConfig assembles the configure_to_story payload, including the
// tap models for every overlay. Only the first link is honored; the first
// sticker marker wins story_sticker_ids; a reshared post sticker records the
// last media pk as reshared_media_id.
func (c *Client) buildStoryConfig(handle *UploadHandle, meta StoryMetadata) (map[string]any, error) {
	now := time.Now().Unix()
	data := map[string]any{
		"supported_capabilities_new":        storySupportedCapabilities,
		"has_original_sound":                "1",
		"camera_session_id":                 c.ClientSessionID,
		"scene_capture_type":                "",
		"timezone_offset":                   strconv.Itoa(c.TimezoneOffset),
		"client_shared_at":                  strconv.FormatInt(now-5, 10),
		"story_sticker_ids":                 "",
		"media_folder":                      "Camera",
		"configure_mode":                    "1",
		"source_type":                       "4",
		"creation_surface":                  "camera",
		"imported_taken_at":                 now - 3*24*3600,
		"capture_type":                      "normal",
		"upload_id":                         handle.ID,
		"client_timestamp":                  strconv.FormatInt(now, 10),
		"device":                            c.deviceInfo(),
		"_uid":                              c.UserID(),
		"_uuid":                             c.UUID,
		"device_id":                         c.AndroidDeviceID,
		"composition_id":                    uuid.New().String(),
		"app_attribution_android_namespace": "",
		"media_transformation_info":         mediaTransformationInfo(handle.Width, handle.Height),
		"original_media_type":               "photo",
		"camera_entry_point":                strconv.Itoa(rand.Intn(140) + 25),
		"edits": map[string]any{
			"crop_original_size": []float64{float64(handle.Width), float64(handle.Height)},
			"filter_type":        0,
			"filter_strength":    1.0,
		},
		"extra": map[string]any{
			"source_width":  handle.Width,
			"source_height": handle.Height,
		},
	}
	if meta.Caption != "" {
		data["caption"] = meta.Caption
	}
	for k, v := range meta.Extra {
		data[k] = v
	}

	var (
		tapModels []map[string]any
		markers   []string
	)

	for _, mention := range meta.Mentions {
		item := map[string]any{
			"x":            mention.X,
			"y":            mention.Y,
			"z":            0,
			"width":        mention.Width,
			"height":       mention.Height,
			"rotation":     0.0,
			"type":         "mention",
			"user_id":      strconv.FormatInt(mention.UserID, 10),
			"is_sticker":   false,
			"display_type": "mention_username",
		}
		reelMentions, err := json.Marshal([]map[string]any{item})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reel mentions: %w", err)
		}
		data["reel_mentions"] = string(reelMentions)
		tapModels = append(tapModels, item)
	}

	if len(meta.Hashtags) > 0 {
		markers = append(markers, markerHashtag)
		for _, tag := range meta.Hashtags {
			tapModels = append(tapModels, map[string]any{
				"x":                tag.X,
				"y":                tag.Y,
				"z":                0,
				"width":            tag.Width,
				"height":           tag.Height,
				"rotation":         0.0,
				"type":             "hashtag",
				"tag_name":         tag.Name,
				"is_sticker":       true,
				"tap_state":        0,
				"tap_state_str_id": "hashtag_sticker_gradient",
			})
		}
	}

	if len(meta.Locations) > 0 {
		markers = append(markers, markerLocation)
		for _, loc := range meta.Locations {
			tapModels = append(tapModels, map[string]any{
				"x":                loc.X,
				"y":                loc.Y,
				"z":                0,
				"width":            loc.Width,
				"height":           loc.Height,
				"rotation":         0.0,
				"type":             "location",
				"location_id":      strconv.FormatInt(loc.Location.Pk, 10),
				"is_sticker":       true,
				"tap_state":        0,
				"tap_state_str_id": "location_sticker_vibrant",
			})
		}
	}

	stickers := meta.Stickers
	if len(meta.Links) > 0 {
		// Only one swipe-up link is supported per story.
		link := meta.Links[0]
		stickers = append(stickers[:len(stickers):len(stickers)], StorySticker{
			OverlayGeometry: link.OverlayGeometry,
			Type:            "story_link",
			Extra: map[string]any{
				"link_type":        "web",
				"url":              link.WebURI,
				"tap_state_str_id": markerLink,
			},
		})
		markers = append(markers, markerLink)
	}

	for _, sticker := range stickers {
		item := map[string]any{
			"x":              sticker.X,
			"y":              sticker.Y,
			"z":              sticker.Z,
			"width":          sticker.Width,
			"height":         sticker.Height,
			"rotation":       sticker.Rotation,
			"type":           sticker.Type,
			"is_sticker":     true,
			"selected_index": 0,
			"tap_state":      0,
		}
		for k, v := range sticker.Extra {
			item[k] = v
		}
		if sticker.ID != "" {
			item["str_id"] = sticker.ID
			markers = append(markers, sticker.ID)
		}
		tapModels = append(tapModels, item)
		if sticker.Type == "gif" {
			data["has_animated_sticker"] = "1"
		}
	}

	for _, repost := range meta.Medias {
		if repost.MediaPK == 0 {
			return nil, ErrMissingMediaReference
		}
		ownerID := ""
		if repost.UserID != 0 {
			ownerID = strconv.FormatInt(repost.UserID, 10)
		}
		tapModels = append(tapModels, map[string]any{
			"x":                repost.X,
			"y":                repost.Y,
			"z":                repost.Z,
			"width":            repost.Width,
			"height":           repost.Height,
			"rotation":         repost.Rotation,
			"type":             "feed_media",
			"media_id":         strconv.FormatInt(repost.MediaPK, 10),
			"media_owner_id":   ownerID,
			"product_type":     "feed",
			"is_sticker":       true,
			"tap_state":        0,
			"tap_state_str_id": "feed_post_sticker_square",
		})
		data["reshared_media_id"] = strconv.FormatInt(repost.MediaPK, 10)
	}

	if len(meta.Polls) > 0 {
		markers = append(markers, markerPoll)
		for _, poll := range meta.Polls {
			pollType := poll.PollType
			if pollType == "" {
				pollType = "story_poll"
			}
			modelType := poll.Type
			if modelType == "" {
				modelType = "polling"
			}
			tallies := make([]map[string]any, 0, len(poll.Options))
			for _, option := range poll.Options {
				tallies = append(tallies, map[string]any{
					"count":     0,
					"font_size": 39.0,
					"text":      option,
				})
			}
			item := map[string]any{
				"x":                    roundTo7(poll.X),
				"y":                    roundTo7(poll.Y),
				"z":                    poll.Z,
				"width":                roundTo7(poll.Width),
				"height":               roundTo7(poll.Height),
				"rotation":             poll.Rotation,
				"type":                 modelType,
				"poll_type":            pollType,
				"is_sticker":           true,
				"tap_state":            0,
				"tap_state_str_id":     markerPoll,
				"is_multi_option_poll": poll.IsMultiOption,
				"is_shared_result":     poll.IsSharedResult,
				"viewer_can_vote":      poll.ViewerCanVote,
				"finished":             poll.Finished,
				"color":                poll.Color,
				"question":             poll.Question,
				"tallies":              tallies,
			}
			for k, v := range poll.Extra {
				item[k] = v
			}
			tapModels = append(tapModels, item)
		}
	}

	if len(tapModels) > 0 {
		tapJSON, err := json.Marshal(tapModels)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tap models: %w", err)
		}
		data["tap_models"] = string(tapJSON)
	}
	if len(markers) > 0 {
		data["story_sticker_ids"] = markers[0]
	}

	return data, nil
}

func mediaTransformationInfo(width, height int) string {
	info, _ := json.Marshal(map[string]string{
		"width":               strconv.Itoa(width),
		"height":              strconv.Itoa(height),
		"x_transform":         "0",
		"y_transform":         "0",
		"zoom":                "1.0",
		"rotation":            "0.0",
		"background_coverage": "0.0",
	})
	return string(info)
}

func roundTo7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
