package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/session"
	"github.com/desertthunder/musicai/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin exchanges email and password for a backend session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	username := cmd.String("username")
	r.logger.Debug("logging in", "username", username)

	if err := actions.LogIn(ctx, username, cmd.String("password")); err != nil {
		return err
	}

	if p := actions.Store().UserProfile(); p != nil {
		return r.writePlain("✓ Signed in as %s\n", p.Email)
	}
	return nil
}

// AuthLogout forgets the backend session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	return actions.UserLogOut(ctx)
}

type authStatus struct {
	LoggedIn  bool                `json:"logged_in"`
	Profile   *models.UserProfile `json:"profile,omitempty"`
	Subject   string              `json:"subject,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Admin     bool                `json:"admin"`
}

// AuthStatus validates the stored session against the backend and prints it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}

	status := authStatus{LoggedIn: actions.CheckLoggedIn(ctx)}
	store := actions.Store()
	if status.LoggedIn {
		status.Profile = store.UserProfile()
		status.Admin = store.HasAdminAccess()
		if claims, err := session.InspectToken(store.Token()); err != nil {
			r.logger.Debug("token is not a readable JWT", "error", err)
		} else {
			status.Subject = claims.Subject
			if !claims.ExpiresAt.IsZero() {
				status.ExpiresAt = &claims.ExpiresAt
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("MusicAI Session")
	if !status.LoggedIn {
		return r.writePlain("✗ Not logged in\n")
	}

	r.writePlain("✓ Logged in\n")
	if status.Profile != nil {
		r.writePlain("Email: %s\n", status.Profile.Email)
		if status.Profile.FullName != "" {
			r.writePlain("Name: %s\n", status.Profile.FullName)
		}
		if status.Profile.SpotifyID != "" {
			r.writePlain("Spotify ID: %s\n", status.Profile.SpotifyID)
		}
	}
	if status.Admin {
		r.writePlain("Role: superuser\n")
	}
	if status.ExpiresAt != nil {
		r.writePlain("Token expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

// AuthSignup creates an account through the open signup endpoint.
func (r *Runner) AuthSignup(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	data := models.UserProfileCreate{
		Email:    cmd.String("email"),
		Password: models.StringPtr(cmd.String("password")),
	}
	if name := cmd.String("full-name"); name != "" {
		data.FullName = models.StringPtr(name)
	}

	user, err := actions.SignUp(ctx, data)
	if err != nil {
		return err
	}
	r.logger.Info("account created", "id", user.ID, "email", user.Email)
	return nil
}

// AuthRecover requests a password recovery email.
func (r *Runner) AuthRecover(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}

	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	return actions.PasswordRecovery(ctx, email)
}

// AuthReset sets a new password with a recovery token.
func (r *Runner) AuthReset(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	return actions.ResetPassword(ctx, cmd.String("password"), cmd.String("token"))
}
