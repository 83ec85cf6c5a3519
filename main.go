package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/admariner/instagrapi/actions/photos"
	"github.com/admariner/instagrapi/actions/session"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "instagrapi",
		Usage:   "Upload and download Instagram photos from the command line",
		Version: version,
		Commands: []*cli.Command{
			session.SessionCommand,
			photos.PhotosCommand,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
