// Package session wires session import and inspection into CLI commands.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/admariner/instagrapi/client"
	"github.com/admariner/instagrapi/internal/storage"
)

// SessionCommand manages the stored API session.
var SessionCommand = &cli.Command{
	Name:  "session",
	Usage: "Import, inspect or clear the stored session",
	Commands: []*cli.Command{
		{
			Name:      "import",
			Usage:     "Import a session from a settings file or a sessionid cookie",
			ArgsUsage: "[settings.json]",
			Action:    importAction,
		},
		{
			Name:   "status",
			Usage:  "Show whether a session is stored and who it belongs to",
			Action: statusAction,
		},
		{
			Name:   "clear",
			Usage:  "Delete the stored session",
			Action: clearAction,
		},
	},
}

func importAction(ctx context.Context, cmd *cli.Command) error {
	store, err := storage.NewSessionStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize session storage: %w", err)
	}

	igClient := client.NewClient()

	if path := cmd.Args().First(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := igClient.FromJSON(data); err != nil {
			return fmt.Errorf("failed to parse settings file: %w", err)
		}
	} else {
		fmt.Print("Paste your sessionid cookie: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read session id: %w", err)
		}
		if err := igClient.LoginBySessionID(string(raw)); err != nil {
			return err
		}
		// A bare cookie carries no device identity, pick a fresh one.
		igClient.RandomizeDevice()
	}

	if !igClient.IsLoggedIn() {
		return fmt.Errorf("imported data does not contain a valid session")
	}

	var settings map[string]any
	jsonData, err := igClient.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to export settings: %w", err)
	}
	if err := json.Unmarshal(jsonData, &settings); err != nil {
		return fmt.Errorf("failed to export settings: %w", err)
	}

	if err := store.SaveSession(igClient.Username, settings); err != nil {
		return err
	}

	fmt.Printf("✅ Session stored for user id %d\n", igClient.UserID())
	return nil
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	store, err := storage.NewSessionStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize session storage: %w", err)
	}

	stored, err := store.LoadSession()
	if err != nil {
		return err
	}
	if stored == nil {
		fmt.Println("❌ No session stored")
		return nil
	}

	igClient, err := client.NewClientFromSettings(stored.Settings)
	if err != nil {
		fmt.Println("⚠️  Stored session is unusable, re-import it")
		return nil
	}

	if stored.Username != "" {
		fmt.Printf("✅ Session stored for @%s (user id %d)\n", stored.Username, igClient.UserID())
	} else {
		fmt.Printf("✅ Session stored for user id %d\n", igClient.UserID())
	}
	fmt.Printf("   Store: %s\n", store.GetBasePath())
	return nil
}

func clearAction(ctx context.Context, cmd *cli.Command) error {
	store, err := storage.NewSessionStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize session storage: %w", err)
	}

	if err := store.DeleteSession(); err != nil {
		return err
	}

	fmt.Println("🗑  Session deleted")
	return nil
}
