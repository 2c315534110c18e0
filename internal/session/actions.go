package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/services"
	"github.com/desertthunder/musicai/internal/shared"
	"github.com/desertthunder/musicai/internal/storage"
)

// Backend is the subset of [services.APIService] the actions call.
type Backend interface {
	LogInGetToken(ctx context.Context, username, password string) (*models.AccessToken, error)
	GetMe(ctx context.Context, token string) (*models.UserProfile, error)
	UpdateMe(ctx context.Context, token string, data models.UserProfileUpdate) (*models.UserProfile, error)
	GetUsers(ctx context.Context, token string) ([]models.UserProfile, error)
	UpdateUser(ctx context.Context, token string, id int, data models.UserProfileUpdate) (*models.UserProfile, error)
	CreateUser(ctx context.Context, data models.UserProfileCreate) (*models.UserProfile, error)
	CreateUserFromAdmin(ctx context.Context, token string, data models.UserProfileCreate) (*models.UserProfile, error)
	PasswordRecovery(ctx context.Context, email string) (*models.Message, error)
	ResetPassword(ctx context.Context, password, token string) (*models.Message, error)
	GetRisingTracks(ctx context.Context, token string, params models.RisingTrackParams) ([]models.RisingTrack, error)
	GetUserPlaylist(ctx context.Context, top services.TopItemsFetcher, token, spotifyToken string) (*models.UserPlaylist, error)
}

// Provider is the subset of [services.SpotifyService] the actions call.
type Provider interface {
	services.TopItemsFetcher
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*models.SpotifyToken, error)
	Refresh(ctx context.Context, refreshToken string) (*models.SpotifyToken, error)
	Me(ctx context.Context, token string) *models.SpotifyProfile
	SaveTrack(ctx context.Context, token, trackID string) error
}

// Redirector sends the user to the provider authorization page.
//
// Control returns to the session through [Actions.ReceiveSpotifyAuthCode] once the provider
// redirects back with a code for state.
type Redirector interface {
	Redirect(ctx context.Context, authURL, state string) error
}

// Options configures [NewActions]. Zero fields get in-memory defaults; API is required.
type Options struct {
	Store      *Store
	Local      *storage.Local
	API        Backend
	Spotify    Provider
	Navigator  Navigator
	Redirector Redirector
	Logger     *log.Logger
	// MinDelay is the minimum duration of profile update and password flows. Zero disables it.
	MinDelay time.Duration
}

// Actions orchestrates the backend and Spotify sessions.
//
// Actions run sequentially on the caller's goroutine.
type Actions struct {
	store      *Store
	local      *storage.Local
	api        Backend
	spotify    Provider
	nav        Navigator
	redirector Redirector
	logger     *log.Logger
	minDelay   time.Duration
}

func NewActions(opts Options) *Actions {
	a := &Actions{
		store:      opts.Store,
		local:      opts.Local,
		api:        opts.API,
		spotify:    opts.Spotify,
		nav:        opts.Navigator,
		redirector: opts.Redirector,
		logger:     opts.Logger,
		minDelay:   opts.MinDelay,
	}
	if a.store == nil {
		a.store = NewStore()
	}
	if a.local == nil {
		a.local = storage.NewLocal(storage.NewMemoryStorage())
	}
	if a.nav == nil {
		a.nav = NewRoute(PathRoot)
	}
	if a.logger == nil {
		a.logger = shared.NewLogger(nil)
	}
	return a
}

func (a *Actions) Store() *Store { return a.store }

func (a *Actions) Navigator() Navigator { return a.nav }

// SetRedirector replaces the redirector used by [Actions.LogInSpotify].
func (a *Actions) SetRedirector(r Redirector) { a.redirector = r }

func (a *Actions) notify(content, color string) {
	a.store.AddNotification(models.Notification{Content: content, Color: color})
}

// progress queues a progress notification and returns a func that removes it.
func (a *Actions) progress(content string) func() {
	id := a.store.AddNotification(models.Notification{Content: content, ShowProgress: true})
	return func() { a.store.RemoveNotification(id) }
}

// holdUntil blocks until minDelay has passed since start or ctx is done.
func (a *Actions) holdUntil(ctx context.Context, start time.Time) {
	wait := a.minDelay - time.Since(start)
	if wait <= 0 {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// LogIn exchanges credentials for a backend token.
//
// The token is persisted and committed before the profile is fetched. Any failure, including an
// empty token, sets the error flag and runs the full [Actions.LogOut] sequence.
func (a *Actions) LogIn(ctx context.Context, username, password string) error {
	token, err := a.api.LogInGetToken(ctx, username, password)
	if err == nil && (token == nil || token.AccessToken == "") {
		err = shared.ErrEmptyToken
	}
	if err == nil {
		err = a.local.SaveToken(token.AccessToken)
	}
	if err != nil {
		a.logger.Error("login failed", "username", username, "error", err)
		a.store.SetLogInError(true)
		if lerr := a.LogOut(ctx); lerr != nil {
			a.logger.Warn("logout after failed login", "error", lerr)
		}
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	a.store.SetToken(token.AccessToken)
	a.store.SetLoggedIn(true)
	a.store.SetLogInError(false)

	if err := a.GetUserProfile(ctx); err != nil {
		return err
	}

	routeLoggedIn(a.nav)
	a.notify("Logged in", models.ColorSuccess)
	a.logger.Info("logged in", "username", username)
	return nil
}

// RemoveLogIn clears the backend token from storage and the store.
func (a *Actions) RemoveLogIn(ctx context.Context) error {
	err := a.local.RemoveToken()
	a.store.SetToken("")
	a.store.SetLoggedIn(false)
	if err != nil {
		return fmt.Errorf("failed to remove stored token: %w", err)
	}
	return nil
}

// LogOut clears the backend session and routes to the login page.
func (a *Actions) LogOut(ctx context.Context) error {
	err := a.RemoveLogIn(ctx)
	routeLogOut(a.nav)
	return err
}

// UserLogOut is a user initiated [Actions.LogOut] that also queues a notification.
func (a *Actions) UserLogOut(ctx context.Context) error {
	if err := a.LogOut(ctx); err != nil {
		return err
	}
	a.notify("Logged out", models.ColorSuccess)
	return nil
}

// CheckApiError logs the user out when err carries a 401 and reports whether it did.
func (a *Actions) CheckApiError(ctx context.Context, err error) bool {
	if err == nil || !services.IsUnauthorized(err) {
		return false
	}

	a.logger.Warn("unauthorized response, logging out", "error", err)
	if lerr := a.LogOut(ctx); lerr != nil {
		a.logger.Error("logout failed", "error", lerr)
	}
	return true
}

// CheckLoggedIn reconciles the store with the persisted token and validates it against the backend.
func (a *Actions) CheckLoggedIn(ctx context.Context) bool {
	if a.store.IsLoggedIn() {
		return true
	}

	token := a.store.Token()
	if token == "" {
		local, err := a.local.Token()
		if err != nil {
			a.logger.Warn("failed to read stored token", "error", err)
		}
		if local != "" {
			a.store.SetToken(local)
			token = local
		}
	}

	if token != "" {
		profile, err := a.api.GetMe(ctx, token)
		if err == nil {
			a.store.SetLoggedIn(true)
			a.store.SetUserProfile(profile)
			return true
		}
		a.logger.Debug("stored token rejected", "error", err)
	}

	if err := a.RemoveLogIn(ctx); err != nil {
		a.logger.Warn("failed to clear login", "error", err)
	}
	return false
}

// GetUserProfile replaces the stored profile with the backend's.
func (a *Actions) GetUserProfile(ctx context.Context) error {
	profile, err := a.api.GetMe(ctx, a.store.Token())
	if err != nil {
		a.CheckApiError(ctx, err)
		return err
	}
	a.store.SetUserProfile(profile)
	return nil
}

// UpdateUserProfile applies a partial update and replaces the stored profile with the response.
func (a *Actions) UpdateUserProfile(ctx context.Context, update models.UserProfileUpdate) error {
	done := a.progress("saving")
	start := time.Now()

	profile, err := a.api.UpdateMe(ctx, a.store.Token(), update)
	a.holdUntil(ctx, start)
	done()
	if err != nil {
		a.CheckApiError(ctx, err)
		return err
	}

	a.store.SetUserProfile(profile)
	a.notify("Profile successfully updated", models.ColorSuccess)
	return nil
}

// PasswordRecovery requests a recovery email and logs out on success.
func (a *Actions) PasswordRecovery(ctx context.Context, email string) error {
	done := a.progress("Sending password recovery email")
	start := time.Now()

	_, err := a.api.PasswordRecovery(ctx, email)
	a.holdUntil(ctx, start)
	done()
	if err != nil {
		a.notify("Incorrect username", models.ColorError)
		return err
	}

	a.notify("Password recovery email sent", models.ColorSuccess)
	return a.LogOut(ctx)
}

// ResetPassword sets a new password from a recovery token and logs out on success.
func (a *Actions) ResetPassword(ctx context.Context, password, token string) error {
	done := a.progress("Resetting password")
	start := time.Now()

	_, err := a.api.ResetPassword(ctx, password, token)
	a.holdUntil(ctx, start)
	done()
	if err != nil {
		a.notify("Error resetting password", models.ColorError)
		return err
	}

	a.notify("Password successfully reset", models.ColorSuccess)
	return a.LogOut(ctx)
}

// RemoveNotification removes the notification after timeout, or immediately when ctx ends first.
func (a *Actions) RemoveNotification(ctx context.Context, id string, timeout time.Duration) bool {
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	return a.store.RemoveNotification(id)
}

// GetRisingTracks fetches a page of rising tracks, merges it and makes its first record current.
func (a *Actions) GetRisingTracks(ctx context.Context, params models.RisingTrackParams) error {
	tracks, err := a.api.GetRisingTracks(ctx, a.store.Token(), params)
	if err != nil {
		a.CheckApiError(ctx, err)
		return err
	}

	added := a.store.SetRisingTracks(tracks)
	if len(tracks) > 0 {
		a.store.SetCurrentTrack(&tracks[0])
	}
	a.logger.Debug("rising tracks merged", "received", len(tracks), "added", added, "skip", params.Skip)
	return nil
}

// GetUserPlaylist ensures a fresh Spotify token and asks the backend for a playlist.
func (a *Actions) GetUserPlaylist(ctx context.Context) error {
	if err := a.CheckLoggedInSpotify(ctx); err != nil {
		return err
	}
	token := a.store.SpotifyToken()

	playlist, err := a.api.GetUserPlaylist(ctx, a.spotify, a.store.Token(), token.AccessToken)
	if err != nil {
		a.CheckApiError(ctx, err)
		return err
	}
	a.store.SetUserPlaylist(playlist)
	return nil
}

// GetUsers loads every user. Requires a superuser session.
func (a *Actions) GetUsers(ctx context.Context) error {
	users, err := a.api.GetUsers(ctx, a.store.Token())
	if err != nil {
		a.CheckApiError(ctx, err)
		return err
	}
	a.store.SetUsers(users)
	return nil
}

// CreateUser creates a user with the current superuser session.
func (a *Actions) CreateUser(ctx context.Context, data models.UserProfileCreate) (*models.UserProfile, error) {
	user, err := a.api.CreateUserFromAdmin(ctx, a.store.Token(), data)
	if err != nil {
		a.CheckApiError(ctx, err)
		return nil, err
	}
	a.notify("User successfully created", models.ColorSuccess)
	return user, nil
}

// UpdateUser updates another user with the current superuser session.
func (a *Actions) UpdateUser(ctx context.Context, id int, data models.UserProfileUpdate) (*models.UserProfile, error) {
	user, err := a.api.UpdateUser(ctx, a.store.Token(), id, data)
	if err != nil {
		a.CheckApiError(ctx, err)
		return nil, err
	}

	users := a.store.Users()
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = *user
		}
	}
	a.store.SetUsers(users)
	a.notify("User successfully updated", models.ColorSuccess)
	return user, nil
}

// SignUp registers a new account through the open signup endpoint.
func (a *Actions) SignUp(ctx context.Context, data models.UserProfileCreate) (*models.UserProfile, error) {
	user, err := a.api.CreateUser(ctx, data)
	if err != nil {
		a.notify("Error creating account", models.ColorError)
		return nil, err
	}
	a.notify("Account created", models.ColorSuccess)
	return user, nil
}

// errNoProvider is returned by provider actions when no Spotify client is configured.
var errNoProvider = fmt.Errorf("%w: spotify client not configured", shared.ErrMissingCredentials)

func (a *Actions) requireProvider() error {
	if a.spotify == nil {
		return errNoProvider
	}
	return nil
}

// persistSpotifyToken writes the accepted token to the provider storage keys.
func (a *Actions) persistSpotifyToken(t models.SpotifyToken) error {
	errs := []error{
		a.local.SaveSpotifyToken(t.AccessToken),
		a.local.SaveSpotifyExpiresIn(t.ExpiresIn),
		a.local.SaveSpotifyExpiresAt(t.ExpiresAt),
	}
	if t.RefreshToken != "" {
		errs = append(errs, a.local.SaveSpotifyRefreshToken(t.RefreshToken))
	}
	return errors.Join(errs...)
}

// acceptSpotifyToken commits a provider token, persists it and back-fills the local profile.
// A token that fails to persist is rolled back out of the store.
func (a *Actions) acceptSpotifyToken(ctx context.Context, t models.SpotifyToken) error {
	accepted := a.store.SetSpotifyToken(t)
	a.store.SetLoggedInSpotify(true)

	if err := a.persistSpotifyToken(accepted); err != nil {
		a.logger.Error("failed to persist spotify token", "error", err)
		// The store never holds a token that storage could not keep.
		a.store.ClearSpotifyToken()
		return err
	}
	return a.backfillProfile(ctx, accepted.AccessToken)
}

// backfillProfile links the Spotify account to a local profile that has no spotify_id yet.
//
// full_name is only sent when the local profile has none. Existing fields are never overwritten.
func (a *Actions) backfillProfile(ctx context.Context, accessToken string) error {
	sp := a.spotify.Me(ctx, accessToken)
	if sp == nil || sp.ID == "" {
		return nil
	}

	profile := a.store.UserProfile()
	if profile == nil || profile.SpotifyID != "" {
		return nil
	}

	update := models.UserProfileUpdate{SpotifyID: models.StringPtr(sp.ID)}
	if sp.Name != "" && profile.FullName == "" {
		update.FullName = models.StringPtr(sp.Name)
	}
	a.logger.Info("linking spotify account", "spotify_id", sp.ID)
	return a.UpdateUserProfile(ctx, update)
}

// LogInSpotify starts the authorization-code flow unless a provider token is already held.
func (a *Actions) LogInSpotify(ctx context.Context) error {
	if err := a.requireProvider(); err != nil {
		return err
	}
	if a.store.SpotifyToken() != nil {
		return nil
	}
	if a.redirector == nil {
		return fmt.Errorf("%w: no redirector configured", shared.ErrServiceUnavailable)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return err
	}
	a.store.SetSpotifyAuthState(state)

	return a.redirector.Redirect(ctx, a.spotify.AuthURL(state), state)
}

// ReceiveSpotifyAuthCode persists the code delivered to the redirect URI and exchanges it.
func (a *Actions) ReceiveSpotifyAuthCode(ctx context.Context, code string) error {
	if code == "" {
		return shared.ErrNoAuthCode
	}
	if err := a.local.SaveSpotifyAuthCode(code); err != nil {
		return err
	}
	a.store.SetSpotifyAuthCode(code)
	return a.GetSpotifyToken(ctx)
}

// GetSpotifyToken exchanges the stored authorization code for a token.
//
// Exchange failures are logged and returned. No refresh is attempted here: a freshly issued
// code has no refresh token to fall back on.
func (a *Actions) GetSpotifyToken(ctx context.Context) error {
	if err := a.requireProvider(); err != nil {
		return err
	}

	code := a.store.SpotifyAuthCode()
	if code == "" {
		stored, err := a.local.SpotifyAuthCode()
		if err != nil {
			return err
		}
		code = stored
	}
	if code == "" {
		return shared.ErrNoAuthCode
	}

	token, err := a.spotify.Exchange(ctx, code)
	if err != nil {
		a.logger.Error("spotify code exchange failed", "status", services.StatusCode(err), "error", err)
		return err
	}
	return a.acceptSpotifyToken(ctx, *token)
}

// RefreshSpotifyToken refreshes the provider token, preferring the in-memory refresh token over the stored one.
func (a *Actions) RefreshSpotifyToken(ctx context.Context) error {
	if err := a.requireProvider(); err != nil {
		return err
	}

	var refresh string
	if t := a.store.SpotifyToken(); t != nil && t.RefreshToken != "" {
		refresh = t.RefreshToken
	} else {
		stored, err := a.local.SpotifyRefreshToken()
		if err != nil {
			return err
		}
		refresh = stored
	}
	if refresh == "" {
		return shared.ErrNoRefreshToken
	}

	token, err := a.spotify.Refresh(ctx, refresh)
	if err != nil {
		a.logger.Error("spotify token refresh failed", "status", services.StatusCode(err), "error", err)
		return err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refresh
	}
	return a.acceptSpotifyToken(ctx, *token)
}

// CheckLoggedInSpotify makes sure a provider token is held and refreshes it when it is about to expire.
//
// It must run before any call that needs a provider token.
func (a *Actions) CheckLoggedInSpotify(ctx context.Context) error {
	if err := a.requireProvider(); err != nil {
		return err
	}

	if a.store.SpotifyToken() == nil {
		refresh, err := a.local.SpotifyRefreshToken()
		if err != nil {
			return err
		}
		if refresh != "" {
			err = a.RefreshSpotifyToken(ctx)
		} else {
			err = a.LogInSpotify(ctx)
		}
		if err != nil {
			return err
		}
	}

	token := a.store.SpotifyToken()
	if token == nil {
		return fmt.Errorf("%w: spotify authorization did not complete", shared.ErrNotAuthenticated)
	}
	if token.ExpiresAt != 0 && TokenExpired(token.ExpiresAt, a.store.Now()) {
		a.logger.Debug("spotify token near expiry, refreshing", "expires_at", token.ExpiresAt)
		return a.RefreshSpotifyToken(ctx)
	}
	return nil
}

// RestoreSpotifySession loads a previously persisted provider token into the store.
//
// Returns false when no access token is stored. Expiry is left to [Actions.CheckLoggedInSpotify].
func (a *Actions) RestoreSpotifySession(ctx context.Context) (bool, error) {
	if a.store.SpotifyToken() != nil {
		return true, nil
	}

	access, err := a.local.SpotifyToken()
	if err != nil || access == "" {
		return false, err
	}
	refresh, err := a.local.SpotifyRefreshToken()
	if err != nil {
		return false, err
	}
	expiresIn, err := a.local.SpotifyExpiresIn()
	if err != nil {
		return false, err
	}
	expiresAt, err := a.local.SpotifyExpiresAt()
	if err != nil {
		return false, err
	}

	a.store.RestoreSpotifyToken(models.SpotifyToken{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		ExpiresAt:    expiresAt,
	})
	a.store.SetLoggedInSpotify(true)
	return true, nil
}

// LogOutSpotify forgets the provider session in storage and in the store.
func (a *Actions) LogOutSpotify(ctx context.Context) error {
	err := a.local.RemoveSpotify()
	a.store.ClearSpotifyToken()
	if err != nil {
		return fmt.Errorf("failed to remove spotify session: %w", err)
	}
	a.notify("Logged out of Spotify", models.ColorSuccess)
	return nil
}

// SaveTrack adds a track to the user's Spotify library.
func (a *Actions) SaveTrack(ctx context.Context, trackID string) error {
	if err := a.CheckLoggedInSpotify(ctx); err != nil {
		return err
	}
	if err := a.spotify.SaveTrack(ctx, a.store.SpotifyToken().AccessToken, trackID); err != nil {
		a.CheckApiError(ctx, err)
		return err
	}
	a.notify("Track saved to your library", models.ColorSuccess)
	return nil
}

// SpotifyStatus summarizes the provider session.
type SpotifyStatus struct {
	LoggedIn        bool
	HasToken        bool
	HasRefreshToken bool
	Scope           string
	ExpiresAt       time.Time
	Expired         bool
}

// SpotifySession reports the provider session without touching the network.
func (a *Actions) SpotifySession() SpotifyStatus {
	status := SpotifyStatus{LoggedIn: a.store.IsLoggedInSpotify()}

	if t := a.store.SpotifyToken(); t != nil {
		status.HasToken = true
		status.HasRefreshToken = t.RefreshToken != ""
		status.Scope = t.Scope
		if t.ExpiresAt != 0 {
			status.ExpiresAt = time.UnixMilli(t.ExpiresAt)
			status.Expired = TokenExpired(t.ExpiresAt, a.store.Now())
		}
	}
	if !status.HasRefreshToken {
		if refresh, err := a.local.SpotifyRefreshToken(); err == nil && refresh != "" {
			status.HasRefreshToken = true
		}
	}
	return status
}
