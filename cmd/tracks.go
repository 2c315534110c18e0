package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicai/internal/formatter"
	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
	"github.com/desertthunder/musicai/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/musicai-tui.log"

// risingParams builds the rising-tracks query from flags, starting from the endpoint defaults.
func risingParams(cmd *cli.Command) (models.RisingTrackParams, error) {
	params := models.DefaultRisingTrackParams()
	params.Limit = int(cmd.Int("limit"))
	params.Skip = int(cmd.Int("skip"))
	params.LagDays = int(cmd.Int("lag-days"))
	params.OrderBy = cmd.String("order-by")
	params.MinMusicaiScore = int(cmd.Int("min-score"))
	params.MaxMusicaiScore = int(cmd.Int("max-score"))

	switch {
	case params.Limit <= 0:
		return params, fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	case params.Skip < 0:
		return params, fmt.Errorf("%w: --skip must not be negative", shared.ErrInvalidArgument)
	case params.MinMusicaiScore > params.MaxMusicaiScore:
		return params, fmt.Errorf("%w: --min-score is above --max-score", shared.ErrInvalidArgument)
	}
	return params, nil
}

// emit writes data to --output when set and to stdout otherwise.
func (r *Runner) emit(cmd *cli.Command, data []byte) error {
	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(path, data); err != nil {
			return err
		}
		r.logger.Info("export written", "path", path, "bytes", len(data))
		return r.writePlain("✓ Written to %s\n", path)
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// TracksRising fetches one or more pages of rising tracks and prints them in the requested format.
func (r *Runner) TracksRising(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	params, err := risingParams(cmd)
	if err != nil {
		return err
	}
	pages := int(cmd.Int("pages"))
	if pages < 1 {
		pages = 1
	}

	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	for page := range pages {
		before := len(actions.Store().RisingTracks())
		if err := actions.GetRisingTracks(ctx, params); err != nil {
			return err
		}
		if len(actions.Store().RisingTracks()) == before {
			r.logger.Debug("no new tracks, stopping", "page", page+1)
			break
		}
		params = params.Next()
	}

	data, err := formatter.ExportRisingTracks(format, actions.Store().RisingTracks())
	if err != nil {
		return err
	}
	return r.emit(cmd, data)
}

// TracksBrowse opens the interactive rising-tracks browser.
//
// Logs go to a file while the terminal belongs to the program.
func (r *Runner) TracksBrowse(ctx context.Context, cmd *cli.Command) error {
	params, err := risingParams(cmd)
	if err != nil {
		return err
	}

	if r.actions == nil {
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return err
		}
		if r.logger.GetLevel() == log.DebugLevel {
			shared.SetLogLevel(fileLogger, log.DebugLevel)
		}
		r.SetLogger(fileLogger)
	}

	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}

	p := tea.NewProgram(ui.NewModel(ctx, actions, params), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run browser: %w", err)
	}
	return nil
}

// TracksSave adds a track to the user's Spotify library.
func (r *Runner) TracksSave(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if err := r.requireSpotify(); err != nil {
		return err
	}

	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	return actions.SaveTrack(ctx, id)
}

// PlaylistGenerate asks the backend for a playlist built from the user's Spotify top items.
func (r *Runner) PlaylistGenerate(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.requireSpotify(); err != nil {
		return err
	}

	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	r.logger.Info("generating playlist from spotify top items")
	if err := actions.GetUserPlaylist(ctx); err != nil {
		return err
	}

	data, err := formatter.ExportPlaylist(format, actions.Store().UserPlaylist())
	if err != nil {
		return err
	}
	return r.emit(cmd, data)
}
