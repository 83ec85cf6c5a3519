// Package photos wires the photo upload and download flows into CLI
// commands.
package photos

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/admariner/instagrapi/client"
	"github.com/admariner/instagrapi/internal/config"
	"github.com/admariner/instagrapi/internal/retry"
	"github.com/admariner/instagrapi/internal/storage"
)

// PhotosCommand is the CLI command for uploading and downloading photos.
var PhotosCommand = &cli.Command{
	Name:  "photos",
	Usage: "Upload photos to your feed or story, or download them",
	Commands: []*cli.Command{
		{
			Name:      "upload",
			Usage:     "Upload a photo to your feed",
			ArgsUsage: "<file>",
			Aliases:   []string{"u"},
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "caption",
					Aliases: []string{"c"},
					Usage:   "Post caption",
				},
				&cli.BoolFlag{
					Name:    "debug",
					Aliases: []string{"d"},
					Usage:   "Enable debug output",
				},
			},
			Action: uploadAction,
		},
		{
			Name:      "story",
			Usage:     "Upload a photo as a story",
			ArgsUsage: "<file>",
			Aliases:   []string{"s"},
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "caption",
					Aliases: []string{"c"},
					Usage:   "Story caption",
				},
				&cli.StringFlag{
					Name:  "link",
					Usage: "Swipe-up link URL",
				},
				&cli.StringFlag{
					Name:  "hashtag",
					Usage: "Hashtag sticker (without '#')",
				},
				&cli.StringFlag{
					Name:  "mention",
					Usage: "User id to mention",
				},
				&cli.BoolFlag{
					Name:    "debug",
					Aliases: []string{"d"},
					Usage:   "Enable debug output",
				},
			},
			Action: storyAction,
		},
		{
			Name:      "download",
			Usage:     "Download photos by media id",
			ArgsUsage: "<media_pk>...",
			Aliases:   []string{"dl"},
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "folder",
					Aliases: []string{"f"},
					Usage:   "Target folder",
				},
				&cli.BoolFlag{
					Name:    "debug",
					Aliases: []string{"d"},
					Usage:   "Enable debug output",
				},
			},
			Action: downloadAction,
		},
		{
			Name:      "download-url",
			Usage:     "Download a photo straight from a URL",
			ArgsUsage: "<url>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "folder",
					Aliases: []string{"f"},
					Usage:   "Target folder",
				},
				&cli.StringFlag{
					Name:    "name",
					Aliases: []string{"n"},
					Usage:   "File name without extension",
				},
			},
			Action: downloadURLAction,
		},
	},
}

// loadClient restores a client from the stored session, applying
// environment defaults and the debug flag.
func loadClient(debug bool) (*client.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSessionStorage()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize session storage: %w", err)
	}

	stored, err := store.LoadSession()
	if err != nil {
		return nil, nil, err
	}
	if stored == nil {
		return nil, nil, fmt.Errorf("not logged in, import a session first: instagrapi session import")
	}

	igClient, err := client.NewClientFromSettings(stored.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("stored session is unusable: %w", err)
	}

	igClient.SetRequestTimeout(cfg.RequestTimeout)
	igClient.ConfigureRetry = retry.Config{
		Attempts: cfg.ConfigureAttempts,
		Interval: cfg.ConfigureInterval,
	}
	if debug || cfg.Debug {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		igClient.SetLogger(log)
	}

	return igClient, cfg, nil
}

func uploadAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: instagrapi photos upload <file>")
	}

	igClient, _, err := loadClient(cmd.Bool("debug"))
	if err != nil {
		return err
	}

	reporter := NewCLIReporter()
	media, err := igClient.PhotoUpload(ctx, path, cmd.String("caption"), client.PostMetadata{
		Progress: reporter,
	})
	reporter.Wait()
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Printf("\n✅ Posted photo as %s (pk %d)\n", media.Code, media.Pk)
	return nil
}

func storyAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: instagrapi photos story <file>")
	}

	igClient, _, err := loadClient(cmd.Bool("debug"))
	if err != nil {
		return err
	}

	meta := client.StoryMetadata{Caption: cmd.String("caption")}
	if link := cmd.String("link"); link != "" {
		meta.Links = []client.StoryLink{{
			OverlayGeometry: client.OverlayGeometry{X: 0.5, Y: 0.8, Width: 0.5, Height: 0.1},
			WebURI:          link,
		}}
	}
	if tag := cmd.String("hashtag"); tag != "" {
		meta.Hashtags = []client.StoryHashtag{{
			OverlayGeometry: client.OverlayGeometry{X: 0.5, Y: 0.2, Width: 0.4, Height: 0.1},
			Name:            tag,
		}}
	}
	if mention := cmd.String("mention"); mention != "" {
		userID, err := strconv.ParseInt(mention, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid mention user id %q: %w", mention, err)
		}
		meta.Mentions = []client.StoryMention{{
			OverlayGeometry: client.OverlayGeometry{X: 0.5, Y: 0.5, Width: 0.5, Height: 0.2},
			UserID:          userID,
		}}
	}

	reporter := NewCLIReporter()
	meta.Progress = reporter
	story, err := igClient.PhotoUploadToStory(ctx, path, meta)
	reporter.Wait()
	if err != nil {
		return fmt.Errorf("story upload failed: %w", err)
	}

	fmt.Printf("\n✅ Posted story (pk %d)\n", story.Pk)
	return nil
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("usage: instagrapi photos download <media_pk>...")
	}

	igClient, cfg, err := loadClient(cmd.Bool("debug"))
	if err != nil {
		return err
	}

	folder := cmd.String("folder")
	if folder == "" {
		folder = cfg.DownloadDir
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.DownloadConcurrency)

	for _, arg := range args {
		pk, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid media pk %q: %w", arg, err)
		}
		g.Go(func() error {
			path, err := igClient.DownloadPhoto(gctx, pk, folder)
			if err != nil {
				return fmt.Errorf("media %d: %w", pk, err)
			}
			fmt.Printf("⬇️  %d -> %s\n", pk, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("✅ Downloaded %d photo(s) to %s\n", len(args), folder)
	return nil
}

func downloadURLAction(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.Args().First()
	if rawURL == "" {
		return fmt.Errorf("usage: instagrapi photos download-url <url>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	folder := cmd.String("folder")
	if folder == "" {
		folder = cfg.DownloadDir
	}

	igClient := client.NewClient()
	igClient.SetRequestTimeout(cfg.RequestTimeout)

	path, err := igClient.DownloadPhotoByURL(ctx, rawURL, cmd.String("name"), folder)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	fmt.Printf("⬇️  Saved to %s\n", path)
	return nil
}
