package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
	"github.com/urfave/cli/v3"
)

// profileUpdate builds a partial update from the flags that were set.
func profileUpdate(cmd *cli.Command) models.UserProfileUpdate {
	var update models.UserProfileUpdate
	if cmd.IsSet("full-name") {
		update.FullName = models.StringPtr(cmd.String("full-name"))
	}
	if cmd.IsSet("email") {
		update.Email = models.StringPtr(cmd.String("email"))
	}
	if cmd.IsSet("password") {
		update.Password = models.StringPtr(cmd.String("password"))
	}
	return update
}

func (r *Runner) printProfile(p *models.UserProfile) {
	r.writePlain("ID: %d\n", p.ID)
	r.writePlain("Email: %s\n", p.Email)
	if p.FullName != "" {
		r.writePlain("Name: %s\n", p.FullName)
	}
	r.writePlain("Active: %t\n", p.IsActive)
	r.writePlain("Superuser: %t\n", p.IsSuperuser)
	if p.SpotifyID != "" {
		r.writePlain("Spotify ID: %s\n", p.SpotifyID)
	}
}

// MeShow prints the logged in user's profile.
func (r *Runner) MeShow(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}

	if err := actions.GetUserProfile(ctx); err != nil {
		return err
	}
	profile := actions.Store().UserProfile()

	if cmd.Bool("json") {
		return r.writeJSON(profile, true)
	}
	r.writePlainHeader("Profile")
	r.printProfile(profile)
	return nil
}

// MeUpdate applies a partial update to the logged in user's profile.
func (r *Runner) MeUpdate(ctx context.Context, cmd *cli.Command) error {
	update := profileUpdate(cmd)
	if update.IsEmpty() {
		return fmt.Errorf("%w: at least one of --full-name, --email or --password", shared.ErrMissingArgument)
	}

	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	return actions.UpdateUserProfile(ctx, update)
}

// UsersList prints every account. Requires a superuser session.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}
	if !actions.Store().HasAdminAccess() {
		return fmt.Errorf("%w: superuser access required", shared.ErrNotAuthenticated)
	}

	if err := actions.GetUsers(ctx); err != nil {
		return err
	}
	users := actions.Store().Users()

	if cmd.Bool("json") {
		return r.writeJSON(users, true)
	}

	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(users)))
	for _, u := range users {
		flags := ""
		if u.IsSuperuser {
			flags += " [superuser]"
		}
		if !u.IsActive {
			flags += " [inactive]"
		}
		r.writePlain("%4d  %-32s %s%s\n", u.ID, u.Email, u.FullName, flags)
	}
	return nil
}

// UsersCreate creates an account with the current superuser session.
func (r *Runner) UsersCreate(ctx context.Context, cmd *cli.Command) error {
	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	data := models.UserProfileCreate{
		Email:       cmd.String("email"),
		IsActive:    models.BoolPtr(!cmd.Bool("inactive")),
		IsSuperuser: models.BoolPtr(cmd.Bool("superuser")),
	}
	if cmd.IsSet("password") {
		data.Password = models.StringPtr(cmd.String("password"))
	}
	if name := cmd.String("full-name"); name != "" {
		data.FullName = models.StringPtr(name)
	}

	user, err := actions.CreateUser(ctx, data)
	if err != nil {
		return err
	}
	r.printProfile(user)
	return nil
}

// UsersUpdate updates an account by id with the current superuser session.
func (r *Runner) UsersUpdate(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("id")
	if raw == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: user id %q", shared.ErrInvalidArgument, raw)
	}

	update := profileUpdate(cmd)
	if cmd.IsSet("superuser") {
		update.IsSuperuser = models.BoolPtr(cmd.Bool("superuser"))
	}
	if cmd.IsSet("active") {
		update.IsActive = models.BoolPtr(cmd.Bool("active"))
	}
	if update.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	actions, err := r.requireLogin(ctx)
	if err != nil {
		return err
	}
	defer r.flushNotifications()

	user, err := actions.UpdateUser(ctx, id, update)
	if err != nil {
		return err
	}
	r.printProfile(user)
	return nil
}
