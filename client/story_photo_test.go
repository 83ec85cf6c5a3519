package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admariner/instagrapi/internal/retry"
)

func testHandle() *UploadHandle {
	return &UploadHandle{ID: "1576102477530", Width: 1080, Height: 1920}
}

func decodeTapModels(t *testing.T, data map[string]any) []map[string]any {
	t.Helper()

	raw, ok := data["tap_models"].(string)
	require.True(t, ok, "tap_models must be a JSON string")

	var models []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &models))
	return models
}

func modelsOfType(models []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range models {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestBuildStoryConfigBaseFields(t *testing.T) {
	c := NewClient()

	data, err := c.buildStoryConfig(testHandle(), StoryMetadata{})
	require.NoError(t, err)

	assert.Equal(t, "1576102477530", data["upload_id"])
	assert.Equal(t, "1", data["configure_mode"])
	assert.Equal(t, "4", data["source_type"])
	assert.Equal(t, "camera", data["creation_surface"])
	assert.Equal(t, "photo", data["original_media_type"])
	assert.Equal(t, "normal", data["capture_type"])
	assert.Equal(t, "", data["story_sticker_ids"])

	_, hasCaption := data["caption"]
	assert.False(t, hasCaption, "empty caption must be omitted")
	_, hasTapModels := data["tap_models"]
	assert.False(t, hasTapModels)

	var transform map[string]string
	require.NoError(t, json.Unmarshal([]byte(data["media_transformation_info"].(string)), &transform))
	assert.Equal(t, "1080", transform["width"])
	assert.Equal(t, "1920", transform["height"])
	assert.Equal(t, "1.0", transform["zoom"])

	data, err = c.buildStoryConfig(testHandle(), StoryMetadata{Caption: "gm"})
	require.NoError(t, err)
	assert.Equal(t, "gm", data["caption"])
}

func TestBuildStoryConfigExtraOverrides(t *testing.T) {
	c := NewClient()

	data, err := c.buildStoryConfig(testHandle(), StoryMetadata{
		Extra: map[string]any{"configure_mode": "2", "share_to_facebook": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", data["configure_mode"])
	assert.Equal(t, "1", data["share_to_facebook"])
}

func TestBuildStoryConfigMentions(t *testing.T) {
	c := NewClient()

	meta := StoryMetadata{Mentions: []StoryMention{
		{OverlayGeometry: OverlayGeometry{X: 0.1, Y: 0.2, Z: 3, Width: 0.4, Height: 0.5, Rotation: 45}, UserID: 111},
		{OverlayGeometry: OverlayGeometry{X: 0.6, Y: 0.7, Width: 0.2, Height: 0.1}, UserID: 222},
	}}

	data, err := c.buildStoryConfig(testHandle(), meta)
	require.NoError(t, err)

	models := decodeTapModels(t, data)
	require.Len(t, models, 2)
	for _, m := range models {
		assert.Equal(t, "mention", m["type"])
		assert.Equal(t, "mention_username", m["display_type"])
		assert.Equal(t, false, m["is_sticker"])
		// Depth and rotation are flattened for mentions.
		assert.EqualValues(t, 0, m["z"])
		assert.EqualValues(t, 0, m["rotation"])
	}
	assert.Equal(t, "111", models[0]["user_id"])
	assert.Equal(t, "222", models[1]["user_id"])

	var reelMentions []map[string]any
	require.NoError(t, json.Unmarshal([]byte(data["reel_mentions"].(string)), &reelMentions))
	require.Len(t, reelMentions, 1)
	assert.Equal(t, "222", reelMentions[0]["user_id"])

	// No marker for mentions.
	assert.Equal(t, "", data["story_sticker_ids"])
}

func TestStoryStickerMarkerPrecedence(t *testing.T) {
	hashtag := StoryHashtag{Name: "sunset"}
	location := StoryLocation{Location: Location{Pk: 42}}
	link := StoryLink{WebURI: "https://example.com"}
	sticker := StorySticker{ID: "emoji_slider_1", Type: "emoji_slider"}
	poll := StoryPoll{Question: "good?", Options: []string{"yes", "no"}}

	tests := []struct {
		name string
		meta StoryMetadata
		want string
	}{
		{
			name: "hashtag wins over everything",
			meta: StoryMetadata{
				Hashtags:  []StoryHashtag{hashtag},
				Locations: []StoryLocation{location},
				Links:     []StoryLink{link},
				Stickers:  []StorySticker{sticker},
				Polls:     []StoryPoll{poll},
			},
			want: "hashtag_sticker",
		},
		{
			name: "location before link",
			meta: StoryMetadata{
				Locations: []StoryLocation{location},
				Links:     []StoryLink{link},
				Polls:     []StoryPoll{poll},
			},
			want: "location_sticker",
		},
		{
			name: "link before explicit sticker ids",
			meta: StoryMetadata{
				Links:    []StoryLink{link},
				Stickers: []StorySticker{sticker},
			},
			want: "link_sticker_default",
		},
		{
			name: "sticker id before poll",
			meta: StoryMetadata{
				Stickers: []StorySticker{sticker},
				Polls:    []StoryPoll{poll},
			},
			want: "emoji_slider_1",
		},
		{
			name: "poll alone",
			meta: StoryMetadata{Polls: []StoryPoll{poll}},
			want: "polling_sticker_v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient()
			data, err := c.buildStoryConfig(testHandle(), tt.meta)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data["story_sticker_ids"])
		})
	}
}

func TestStorySingleLinkConversion(t *testing.T) {
	c := NewClient()

	meta := StoryMetadata{Links: []StoryLink{
		{OverlayGeometry: OverlayGeometry{X: 0.5, Y: 0.8, Width: 0.6, Height: 0.1}, WebURI: "https://first.example.com"},
		{WebURI: "https://second.example.com"},
	}}

	data, err := c.buildStoryConfig(testHandle(), meta)
	require.NoError(t, err)

	links := modelsOfType(decodeTapModels(t, data), "story_link")
	require.Len(t, links, 1, "only the first link is honored")
	assert.Equal(t, "https://first.example.com", links[0]["url"])
	assert.Equal(t, "web", links[0]["link_type"])
	assert.Equal(t, "link_sticker_default", links[0]["tap_state_str_id"])
	assert.Equal(t, true, links[0]["is_sticker"])
	assert.EqualValues(t, 0, links[0]["selected_index"])

	// The caller's sticker slice must not grow as a side effect.
	assert.Empty(t, meta.Stickers)
}

func TestStoryHashtagAndLocationTapModels(t *testing.T) {
	c := NewClient()

	meta := StoryMetadata{
		Hashtags: []StoryHashtag{
			{OverlayGeometry: OverlayGeometry{X: 0.2, Y: 0.3, Width: 0.5, Height: 0.15}, Name: "golang"},
		},
		Locations: []StoryLocation{
			{OverlayGeometry: OverlayGeometry{X: 0.7, Y: 0.7, Width: 0.3, Height: 0.1}, Location: Location{Pk: 9021}},
		},
	}

	data, err := c.buildStoryConfig(testHandle(), meta)
	require.NoError(t, err)
	models := decodeTapModels(t, data)

	tags := modelsOfType(models, "hashtag")
	require.Len(t, tags, 1)
	assert.Equal(t, "golang", tags[0]["tag_name"])
	assert.Equal(t, "hashtag_sticker_gradient", tags[0]["tap_state_str_id"])

	locs := modelsOfType(models, "location")
	require.Len(t, locs, 1)
	assert.Equal(t, "9021", locs[0]["location_id"])
	assert.Equal(t, "location_sticker_vibrant", locs[0]["tap_state_str_id"])
}

func TestStoryRepostStickers(t *testing.T) {
	c := NewClient()

	meta := StoryMetadata{Medias: []StoryMedia{
		{MediaPK: 100, UserID: 1},
		{MediaPK: 200, UserID: 2},
		{MediaPK: 300},
	}}

	data, err := c.buildStoryConfig(testHandle(), meta)
	require.NoError(t, err)

	reposts := modelsOfType(decodeTapModels(t, data), "feed_media")
	require.Len(t, reposts, 3)
	assert.Equal(t, "100", reposts[0]["media_id"])
	assert.Equal(t, "1", reposts[0]["media_owner_id"])
	assert.Equal(t, "", reposts[2]["media_owner_id"])
	assert.Equal(t, "feed", reposts[0]["product_type"])
	assert.Equal(t, "feed_post_sticker_square", reposts[0]["tap_state_str_id"])

	// The last repost wins the top-level reference.
	assert.Equal(t, "300", data["reshared_media_id"])
}

func TestStoryRepostRequiresMediaPK(t *testing.T) {
	c := NewClient()

	_, err := c.buildStoryConfig(testHandle(), StoryMetadata{
		Medias: []StoryMedia{{UserID: 1}},
	})
	assert.ErrorIs(t, err, ErrMissingMediaReference)
}

func TestStoryPollTapModel(t *testing.T) {
	c := NewClient()

	meta := StoryMetadata{Polls: []StoryPoll{{
		OverlayGeometry: OverlayGeometry{
			X:      0.123456789123,
			Y:      0.987654321987,
			Width:  0.55555555555,
			Height: 0.11111111111,
		},
		Question: "ship it?",
		Options:  []string{"yes", "absolutely"},
		Color:    "black",
	}}}

	data, err := c.buildStoryConfig(testHandle(), meta)
	require.NoError(t, err)

	polls := modelsOfType(decodeTapModels(t, data), "polling")
	require.Len(t, polls, 1)
	p := polls[0]

	assert.InDelta(t, 0.1234568, p["x"], 1e-9)
	assert.InDelta(t, 0.9876543, p["y"], 1e-9)
	assert.InDelta(t, 0.5555556, p["width"], 1e-9)
	assert.InDelta(t, 0.1111111, p["height"], 1e-9)

	assert.Equal(t, "story_poll", p["poll_type"])
	assert.Equal(t, "polling_sticker_v2", p["tap_state_str_id"])
	assert.Equal(t, "ship it?", p["question"])
	assert.Equal(t, "black", p["color"])
	assert.Equal(t, false, p["is_multi_option_poll"])
	assert.Equal(t, false, p["finished"])

	tallies, ok := p["tallies"].([]any)
	require.True(t, ok)
	require.Len(t, tallies, 2)
	first := tallies[0].(map[string]any)
	assert.EqualValues(t, 0, first["count"])
	assert.EqualValues(t, 39, first["font_size"])
	assert.Equal(t, "yes", first["text"])
	assert.Equal(t, "absolutely", tallies[1].(map[string]any)["text"])
}

func TestStoryGifStickerFlag(t *testing.T) {
	c := NewClient()

	data, err := c.buildStoryConfig(testHandle(), StoryMetadata{
		Stickers: []StorySticker{{Type: "gif", ID: "giphy_123"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "1", data["has_animated_sticker"])
	assert.Equal(t, "giphy_123", data["story_sticker_ids"])

	gifs := modelsOfType(decodeTapModels(t, data), "gif")
	require.Len(t, gifs, 1)
	assert.Equal(t, "giphy_123", gifs[0]["str_id"])
}

func TestPhotoUploadToStoryEndToEnd(t *testing.T) {
	var ruploads, validates, configures int
	var configureForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/rupload_igphoto/"):
			ruploads++
			fmt.Fprint(w, `{"status":"ok"}`)
		case r.URL.Path == "/api/v1/media/validate_reel_url/":
			validates++
			fmt.Fprint(w, `{"status":"ok"}`)
		case r.URL.Path == "/api/v1/media/configure_to_story/":
			configures++
			if configures < 2 {
				fmt.Fprint(w, `{"status":"ok"}`)
				return
			}
			require.NoError(t, r.ParseForm())
			configureForm = map[string]string{}
			for k := range r.PostForm {
				configureForm[k] = r.PostForm.Get(k)
			}
			fmt.Fprint(w, `{"status":"ok","media":{"pk":"555","id":"555_777","code":"StOrY","media_type":1,"product_type":"story","user":{"pk":"777","username":"alice"}}}`)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	path := writeTestJPEG(t, t.TempDir(), "story.jpg", 1080, 1920)

	c := newTestClient(t, srv)
	meta := StoryMetadata{
		Caption:  "behind the scenes",
		Mentions: []StoryMention{{UserID: 111}},
		Links:    []StoryLink{{WebURI: "https://example.com/post"}},
		Hashtags: []StoryHashtag{{Name: "golang"}},
	}

	story, err := c.PhotoUploadToStory(context.Background(), path, meta)
	require.NoError(t, err)

	assert.Equal(t, 1, ruploads)
	assert.Equal(t, 2, configures)
	assert.Equal(t, 2, validates, "the link is validated on every configure attempt")

	assert.Equal(t, int64(555), story.Pk)
	assert.Equal(t, "story", story.ProductType)

	// The published story echoes the request overlays verbatim.
	assert.Equal(t, meta.Mentions, story.Mentions)
	assert.Equal(t, meta.Links, story.Links)
	assert.Equal(t, meta.Hashtags, story.Hashtags)
	assert.Empty(t, story.Polls)

	assert.Equal(t, "behind the scenes", configureForm["caption"])
	assert.Equal(t, "hashtag_sticker", configureForm["story_sticker_ids"])
	assert.NotEmpty(t, configureForm["tap_models"])
	assert.Equal(t, c.UUID, configureForm["_uuid"])
}

func TestPhotoUploadToStoryLinkRejected(t *testing.T) {
	var validates, configures int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/rupload_igphoto/"):
			fmt.Fprint(w, `{"status":"ok"}`)
		case r.URL.Path == "/api/v1/media/validate_reel_url/":
			validates++
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"status":"fail","message":"invalid url"}`)
		case r.URL.Path == "/api/v1/media/configure_to_story/":
			configures++
		}
	}))
	defer srv.Close()

	path := writeTestJPEG(t, t.TempDir(), "story.jpg", 10, 10)

	c := newTestClient(t, srv)
	c.ConfigureRetry = retry.Config{Attempts: 5, Interval: time.Millisecond}

	_, err := c.PhotoUploadToStory(context.Background(), path, StoryMetadata{
		Links: []StoryLink{{WebURI: "ftp://nope"}},
	})

	var linkErr *LinkValidationError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, "ftp://nope", linkErr.URL)
	assert.Equal(t, 1, validates, "rejected links must not be retried")
	assert.Zero(t, configures)
}
