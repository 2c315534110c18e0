package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/musicai/internal/shared"
	"github.com/desertthunder/musicai/internal/storage"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the session database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	_, closeFn, err := storage.OpenSQLite(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer closeFn()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

// SetupConfig writes a config file from the bundled template. --force replaces an existing file with the defaults.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		return fmt.Errorf("%w: --config path", shared.ErrMissingArgument)
	}

	if cmd.Bool("force") {
		if err := shared.SaveConfig(path, shared.DefaultConfig()); err != nil {
			return err
		}
	} else if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("%w (use --force to overwrite)", err)
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("2. Run 'musicai auth login -u <email>' to sign in\n")
	return nil
}
