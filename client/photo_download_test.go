package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadPhotoByURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "jpeg-data")
	}))
	defer srv.Close()

	c := NewClient()
	folder := t.TempDir()

	t.Run("derives name from url", func(t *testing.T) {
		got, err := c.DownloadPhotoByURL(context.Background(), srv.URL+"/media/426763.jpg?efg=token", "", folder)
		require.NoError(t, err)
		assert.Equal(t, "426763.jpg", filepath.Base(got))

		data, err := os.ReadFile(got)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-data", string(data))
	})

	t.Run("keeps source extension for explicit name", func(t *testing.T) {
		got, err := c.DownloadPhotoByURL(context.Background(), srv.URL+"/media/426763.webp", "alice_1000", folder)
		require.NoError(t, err)
		assert.Equal(t, "alice_1000.webp", filepath.Base(got))
	})
}

func TestDownloadPhotoByURLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient()
	_, err := c.DownloadPhotoByURL(context.Background(), srv.URL+"/gone.jpg", "", t.TempDir())

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, http.StatusForbidden, dlErr.StatusCode)
}

func TestDownloadPhoto(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/media/1000/info/":
			fmt.Fprintf(w, `{"status":"ok","items":[{"pk":"1000","id":"1000_777","media_type":1,"user":{"pk":"777","username":"alice"},"image_versions2":{"candidates":[{"url":"%s/t51/426763.jpg"}]}}]}`, srvURL)
		case "/api/v1/media/2000/info/":
			fmt.Fprint(w, `{"status":"ok","items":[{"pk":"2000","media_type":2,"user":{"username":"alice"}}]}`)
		case "/t51/426763.jpg":
			fmt.Fprint(w, "jpeg-data")
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewClient()
	c.SetBaseURLs(srv.URL+"/api/v1/", srv.URL+"/")
	folder := t.TempDir()

	got, err := c.DownloadPhoto(context.Background(), 1000, folder)
	require.NoError(t, err)
	assert.Equal(t, "alice_1000.jpg", filepath.Base(got))
	assert.True(t, filepath.IsAbs(got))

	_, err = c.DownloadPhoto(context.Background(), 2000, folder)
	assert.ErrorIs(t, err, ErrMediaNotPhoto)
}

func TestDownloadPhotoBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "raw-bytes")
	}))
	defer srv.Close()

	c := NewClient()
	data, err := c.DownloadPhotoBytes(context.Background(), srv.URL+"/p.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw-bytes"), data)
}
