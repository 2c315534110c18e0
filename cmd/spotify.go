package main

import (
	"context"
	"time"

	"github.com/desertthunder/musicai/internal/session"
	"github.com/urfave/cli/v3"
)

// SpotifyLogin connects Spotify through the authorization-code flow.
//
// A logged in backend session is optional; when present its profile is linked to the Spotify account.
func (r *Runner) SpotifyLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	if !actions.CheckLoggedIn(ctx) {
		r.logger.Debug("no backend session, spotify profile will not be linked")
	}

	if actions.SpotifySession().HasToken {
		r.writePlain("✓ Spotify already connected (run 'musicai spotify logout' to reconnect)\n")
		return nil
	}

	r.writePlainHeader("Spotify OAuth2 Authentication")
	if err := actions.LogInSpotify(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Spotify connected\n")
}

// SpotifyRefresh refreshes the Spotify access token.
func (r *Runner) SpotifyRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	if err := actions.RefreshSpotifyToken(ctx); err != nil {
		return err
	}

	status := actions.SpotifySession()
	return r.writePlain("✓ Token refreshed, expires %s\n", status.ExpiresAt.Local().Format(time.Kitchen))
}

// SpotifyStatus prints the Spotify session without touching the network.
func (r *Runner) SpotifyStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}

	status := actions.SpotifySession()
	if cmd.Bool("json") {
		return r.writeJSON(spotifyStatusJSON(status), true)
	}

	r.writePlainHeader("Spotify Session")
	if !status.HasToken {
		r.writePlain("✗ Not connected\n")
		if status.HasRefreshToken {
			r.writePlain("A refresh token is stored; run 'musicai spotify refresh'\n")
		}
		return nil
	}

	r.writePlain("✓ Connected\n")
	if status.Scope != "" {
		r.writePlain("Scope: %s\n", status.Scope)
	}
	if !status.ExpiresAt.IsZero() {
		state := "valid"
		if status.Expired {
			state = "expired"
		}
		r.writePlain("Expires: %s (%s)\n", status.ExpiresAt.Local().Format(time.RFC1123), state)
	}
	r.writePlain("Refresh token: %t\n", status.HasRefreshToken)
	return nil
}

// SpotifyLogout forgets the Spotify session.
func (r *Runner) SpotifyLogout(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	return actions.LogOutSpotify(ctx)
}

func spotifyStatusJSON(s session.SpotifyStatus) map[string]any {
	out := map[string]any{
		"logged_in":         s.LoggedIn,
		"has_token":         s.HasToken,
		"has_refresh_token": s.HasRefreshToken,
		"expired":           s.Expired,
	}
	if s.Scope != "" {
		out["scope"] = s.Scope
	}
	if !s.ExpiresAt.IsZero() {
		out["expires_at"] = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}
