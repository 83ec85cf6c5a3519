package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// DownloadPhoto downloads a photo by its media id into folder and returns
// the absolute path of the written file. The file is named
// <username>_<mediaPK> with the extension taken from the source URL.
func (c *Client) DownloadPhoto(ctx context.Context, mediaPK int64, folder string) (string, error) {
	media, err := c.MediaInfo(ctx, mediaPK)
	if err != nil {
		return "", err
	}

	if media.MediaType != MediaTypePhoto {
		return "", fmt.Errorf("media %d: %w", mediaPK, ErrMediaNotPhoto)
	}

	filename := fmt.Sprintf("%s_%d", media.User.Username, mediaPK)
	return c.DownloadPhotoByURL(ctx, media.ThumbnailURL, filename, folder)
}

// DownloadPhotoByURL streams the photo at rawURL to disk. When filename is
// empty it is derived from the last URL path segment; when given, the source
// extension is appended to it.
func (c *Client) DownloadPhotoByURL(ctx context.Context, rawURL, filename, folder string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid photo url: %w", err)
	}

	base := path.Base(parsed.Path)
	if filename != "" {
		filename = filename + path.Ext(base)
	} else {
		filename = base
	}

	target := filepath.Join(folder, filename)

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DownloadError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", target, err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}

	c.log.Debug().Str("url", rawURL).Str("path", abs).Msg("photo downloaded")
	return abs, nil
}

// DownloadPhotoBytes fetches the photo at rawURL into memory.
func (c *Client) DownloadPhotoBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo body: %w", err)
	}

	return data, nil
}

// get performs a plain GET outside the private API surface, e.g. against a
// CDN host.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}
