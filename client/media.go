package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// Media type constants as used by the platform.
const (
	MediaTypePhoto    = 1
	MediaTypeVideo    = 2
	MediaTypeCarousel = 8
)

// UserShort is the compact user record embedded in media responses.
type UserShort struct {
	Pk            int64  `json:"pk"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	ProfilePicURL string `json:"profile_pic_url"`
}

// Media is the canonical post representation returned by configure and
// media-info endpoints.
type Media struct {
	Pk           int64     `json:"pk"`
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	TakenAt      int64     `json:"taken_at"`
	MediaType    int       `json:"media_type"`
	ProductType  string    `json:"product_type"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	ThumbnailURL string    `json:"thumbnail_url"`
	User         UserShort `json:"user"`
	CaptionText  string    `json:"caption_text"`
}

// mediaItem mirrors the wire shape of a media record before mapping.
type mediaItem struct {
	Pk             json.Number `json:"pk"`
	ID             string      `json:"id"`
	Code           string      `json:"code"`
	TakenAt        int64       `json:"taken_at"`
	MediaType      int         `json:"media_type"`
	ProductType    string      `json:"product_type"`
	OriginalWidth  int         `json:"original_width"`
	OriginalHeight int         `json:"original_height"`
	User           struct {
		Pk            json.Number `json:"pk"`
		Username      string      `json:"username"`
		FullName      string      `json:"full_name"`
		ProfilePicURL string      `json:"profile_pic_url"`
	} `json:"user"`
	ImageVersions2 struct {
		Candidates []struct {
			URL string `json:"url"`
		} `json:"candidates"`
	} `json:"image_versions2"`
	Caption *struct {
		Text string `json:"text"`
	} `json:"caption"`
}

func mediaFromItem(item mediaItem) *Media {
	m := &Media{
		ID:          item.ID,
		Code:        item.Code,
		TakenAt:     item.TakenAt,
		MediaType:   item.MediaType,
		ProductType: item.ProductType,
		Width:       item.OriginalWidth,
		Height:      item.OriginalHeight,
	}

	// pk arrives as a number or a string depending on the endpoint
	m.Pk, _ = item.Pk.Int64()
	m.User.Pk, _ = item.User.Pk.Int64()
	m.User.Username = item.User.Username
	m.User.FullName = item.User.FullName
	m.User.ProfilePicURL = item.User.ProfilePicURL

	if len(item.ImageVersions2.Candidates) > 0 {
		m.ThumbnailURL = item.ImageVersions2.Candidates[0].URL
	}
	if item.Caption != nil {
		m.CaptionText = item.Caption.Text
	}

	return m
}

// MediaInfo fetches the canonical record for a media id.
func (c *Client) MediaInfo(ctx context.Context, mediaPK int64) (*Media, error) {
	resp, err := c.privateRequestGET(ctx, fmt.Sprintf("media/%d/info/", mediaPK), nil)
	if err != nil {
		return nil, fmt.Errorf("media info lookup failed: %w", err)
	}

	var result struct {
		Items []mediaItem `json:"items"`
	}
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse media info: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("media %d not found", mediaPK)
	}

	return mediaFromItem(result.Items[0]), nil
}

// extractMedia pulls the media record out of a configure response. A nil
// Media with nil error means the response carried no media yet.
func extractMedia(resp *APIResponse) (*Media, error) {
	if resp == nil || len(resp.RawBody) == 0 {
		return nil, nil
	}

	var result struct {
		Media *mediaItem `json:"media"`
	}
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse configure response: %w", err)
	}
	if result.Media == nil {
		return nil, nil
	}

	media := mediaFromItem(*result.Media)
	if media.Pk == 0 && media.ID == "" {
		return nil, nil
	}

	return media, nil
}
