package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicai/internal/server"
	"github.com/desertthunder/musicai/internal/services"
	"github.com/desertthunder/musicai/internal/session"
	"github.com/desertthunder/musicai/internal/shared"
	"github.com/desertthunder/musicai/internal/storage"
	"github.com/desertthunder/musicai/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The session (storage, clients and actions) is built on first use so that setup commands
// never touch the database.
type Runner struct {
	config      *shared.Config
	configPath  string
	ephemeral   bool
	actions     *session.Actions
	spotify     *services.SpotifyService
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
	closeStore  func() error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Actions    *session.Actions
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// OpenBrowser opens the authorization URL. Defaults to [shared.OpenBrowser].
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		actions:     opts.Actions,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, meCommand, usersCommand, spotifyCommand, tracksCommand, playlistCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by the global flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	r.ephemeral = cmd.Bool("ephemeral")

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		return ctx, nil
	}

	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return ctx, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// After releases the session storage.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close releases the session storage. It is safe to call more than once.
func (r *Runner) Close() error {
	if r.closeStore == nil {
		return nil
	}
	err := r.closeStore()
	r.closeStore = nil
	return err
}

// SetLogger replaces the logger. It only reaches the session when called before first use.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// session returns the session actions, building storage and clients on first use.
func (r *Runner) session(ctx context.Context) (*session.Actions, error) {
	if r.actions != nil {
		return r.actions, nil
	}

	backing, err := r.openStorage()
	if err != nil {
		return nil, err
	}

	opts := session.Options{
		Store:      session.NewStore(),
		Local:      storage.NewLocal(backing),
		API:        services.NewAPIService(r.config.API.BaseURL, r.httpClient),
		Navigator:  session.NewRoute(session.PathRoot),
		Redirector: r,
		Logger:     shared.WithLogger(r.logger, "component", "session"),
		MinDelay:   r.config.Session.MinDelayDuration(),
	}

	spotifyCfg := r.config.Credentials.Spotify
	if spotifyCfg.HasSpotifyCredentials() {
		client := &http.Client{
			Transport: services.NewRateLimitedTransport(r.httpClient.Transport, spotifyCfg.RequestsPerSecond, 1),
			Timeout:   r.httpClient.Timeout,
		}
		spotify, err := services.NewSpotifyService(spotifyCfg, client, shared.WithLogger(r.logger, "component", "spotify"))
		if err != nil {
			return nil, err
		}
		r.spotify = spotify
		opts.Spotify = spotify
	}

	r.actions = session.NewActions(opts)
	if r.spotify != nil {
		if _, err := r.actions.RestoreSpotifySession(ctx); err != nil {
			r.logger.Warn("failed to restore spotify session", "error", err)
		}
	}
	return r.actions, nil
}

func (r *Runner) openStorage() (storage.Storage, error) {
	if r.ephemeral {
		r.logger.Debug("using in-memory session storage")
		return storage.NewMemoryStorage(), nil
	}

	store, closeFn, err := storage.OpenSQLite(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	r.closeStore = closeFn
	return store, nil
}

// requireLogin returns the actions of a validated backend session.
func (r *Runner) requireLogin(ctx context.Context) (*session.Actions, error) {
	actions, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	if !actions.CheckLoggedIn(ctx) {
		return nil, fmt.Errorf("%w: run 'musicai auth login' first", shared.ErrNotAuthenticated)
	}
	return actions, nil
}

// requireSpotify returns an error unless Spotify credentials are configured.
func (r *Runner) requireSpotify() error {
	if !r.config.Credentials.Spotify.HasSpotifyCredentials() {
		return fmt.Errorf("%w: set credentials.spotify.client_id and client_secret in %s", shared.ErrMissingCredentials, r.configPath)
	}
	return nil
}

// Redirect runs the authorization-code redirect: it serves the callback on the configured
// address, sends the user to authURL and hands the delivered code to the session.
func (r *Runner) Redirect(ctx context.Context, authURL, state string) error {
	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	path := server.CallbackPath(r.config.Credentials.Spotify.RedirectURI)

	callback := server.NewCallbackServer(addr, path, state, r.logger)
	if err := callback.Start(); err != nil {
		return err
	}
	defer func() {
		if err := callback.Shutdown(); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	timeout := r.config.Session.CallbackTimeoutDuration()
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)

	code, err := callback.Wait(ctx, timeout)
	if err != nil {
		return err
	}
	return r.actions.ReceiveSpotifyAuthCode(ctx, code)
}

// flushNotifications prints and removes every queued notification.
func (r *Runner) flushNotifications() {
	if r.actions == nil {
		return
	}
	store := r.actions.Store()
	for _, n := range store.Notifications() {
		r.writePlain("%s\n", ui.RenderNotification(n))
		store.RemoveNotification(n.ID)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
