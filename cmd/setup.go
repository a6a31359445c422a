package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// Init writes config.toml from the embedded template and prepares the history database.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		r.writePlain("Config file already exists: %s\n", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Created %s\n", configPath)

		if loaded, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			loaded.ApplyEnv(os.LookupEnv)
			config = loaded
		}
	}

	if config.Database.Path == "" {
		r.writePlain("Run history disabled ([database] path is empty)\n")
	} else {
		r.logger.Info("initializing database", "path", config.Database.Path)
		db, err := shared.OpenHistoryDatabase(config.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		version, err := shared.SchemaVersion(db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		r.writePlain("✓ History database ready: %s (schema %d)\n", config.Database.Path, version)
	}

	r.writePlainln("Next steps:")
	r.writePlain("1. Set SPOTIPY_CLIENT_ID, SPOTIPY_CLIENT_SECRET and PLAYLIST_ID in %s or .env\n", configPath)
	r.writePlain("2. Run 'tapedeck' to download the playlist\n")
	return nil
}
