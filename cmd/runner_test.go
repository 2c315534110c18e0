package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
	tu "github.com/desertthunder/musicai/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.actions != nil {
				t.Error("expected session to be built lazily")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "auth", "me", "users", "spotify", "tracks", "playlist"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if cmd.Name != want[i] {
				t.Errorf("expected command %q at index %d, got %q", want[i], i, cmd.Name)
			}
		}
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		calls := 0
		runner := NewRunner(RunnerOpts{})
		runner.closeStore = func() error { calls++; return nil }

		if err := runner.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := runner.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected store closed once, got %d", calls)
		}
	})
}

const (
	backendToken = "backend-token"
	spotifyCode  = "spotify-code"
)

// fakeRemote serves both the MusicAI backend and the Spotify endpoints.
type fakeRemote struct {
	t       *testing.T
	mu      sync.Mutex
	profile models.UserProfile
	saved   []string
	topHits int
}

func (f *fakeRemote) authorized(w http.ResponseWriter, r *http.Request, token string) bool {
	if r.Header.Get("Authorization") != "Bearer "+token {
		tu.WriteJSON(f.t, w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return false
	}
	return true
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/login/access-token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "user@example.com" || r.FormValue("password") != "secret" {
			tu.WriteJSON(f.t, w, http.StatusBadRequest, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		tu.WriteJSON(f.t, w, http.StatusOK, models.AccessToken{AccessToken: backendToken, TokenType: "bearer"})
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r, backendToken) {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		tu.WriteJSON(f.t, w, http.StatusOK, f.profile)
	})
	mux.HandleFunc("PUT /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r, backendToken) {
			return
		}
		var update models.UserProfileUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			f.t.Errorf("failed to decode update: %v", err)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if update.SpotifyID != nil {
			f.profile.SpotifyID = *update.SpotifyID
		}
		if update.FullName != nil {
			f.profile.FullName = *update.FullName
		}
		tu.WriteJSON(f.t, w, http.StatusOK, f.profile)
	})
	mux.HandleFunc("GET /api/v1/tracks/rising-tracks", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r, backendToken) {
			return
		}
		if r.URL.Query().Get("skip") != "0" {
			tu.WriteJSON(f.t, w, http.StatusOK, []models.RisingTrack{})
			return
		}
		tu.WriteJSON(f.t, w, http.StatusOK, []models.RisingTrack{
			{
				ID:         "rt-1",
				Playcount:  125000,
				GrowthRate: 0.42,
				Track:      models.Track{ID: "t1", Name: "Rising Star"},
				Artists:    []models.Artist{{ID: "a1", Name: "Nova"}},
				Album:      models.Album{ID: "al1", Name: "First Light"},
			},
		})
	})
	mux.HandleFunc("POST /api/v1/users/me/playlist", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r, backendToken) {
			return
		}
		var req models.PlaylistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("failed to decode playlist request: %v", err)
		}
		if req.SpotifyToken != "sp-access" {
			f.t.Errorf("expected spotify token in playlist request, got %q", req.SpotifyToken)
		}
		tu.WriteJSON(f.t, w, http.StatusOK, map[string]any{
			"playlist_id": "pl-1",
			"tracks": []map[string]any{
				{"id": "t9", "name": "Deep Cut", "artists": []map[string]string{{"name": "Echo"}}},
			},
		})
	})

	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			f.t.Error("expected client credentials in the authorization header")
		}
		switch r.FormValue("grant_type") {
		case "authorization_code":
			if r.FormValue("code") != spotifyCode {
				tu.WriteJSON(f.t, w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
		case "refresh_token":
			if r.FormValue("refresh_token") != "sp-refresh" {
				tu.WriteJSON(f.t, w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
		}
		tu.WriteJSON(f.t, w, http.StatusOK, map[string]any{
			"access_token":  "sp-access",
			"token_type":    "Bearer",
			"scope":         "user-top-read user-library-modify",
			"expires_in":    3600,
			"refresh_token": "sp-refresh",
		})
	})
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r, "sp-access") {
			return
		}
		tu.WriteJSON(f.t, w, http.StatusOK, models.SpotifyProfile{ID: "sp-user", Name: "Spotify User"})
	})
	mux.HandleFunc("GET /v1/me/top/{type}", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r, "sp-access") {
			return
		}
		f.mu.Lock()
		f.topHits++
		f.mu.Unlock()
		tu.WriteJSON(f.t, w, http.StatusOK, map[string]any{
			"items": []map[string]string{{"id": r.PathValue("type") + "-" + r.URL.Query().Get("time_range")}},
		})
	})
	mux.HandleFunc("PUT /v1/me/tracks", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r, "sp-access") {
			return
		}
		var ids []string
		if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
			f.t.Errorf("failed to decode ids: %v", err)
		}
		f.mu.Lock()
		f.saved = append(f.saved, ids...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// testEnv writes a config pointing at a fake remote and a temp database.
type testEnv struct {
	t          *testing.T
	remote     *fakeRemote
	configPath string
}

func newTestEnv(t *testing.T, withSpotify bool) *testEnv {
	t.Helper()
	remote := &fakeRemote{t: t, profile: models.UserProfile{ID: 1, Email: "user@example.com", IsActive: true}}
	srv := tu.NewServer(t, remote.handler())

	dir := t.TempDir()
	port := freePort(t)

	config := shared.DefaultConfig()
	config.API.BaseURL = srv.URL
	config.Database.Path = filepath.Join(dir, "musicai.db")
	config.Server.Host = "127.0.0.1"
	config.Server.Port = port
	config.Session.MinDelay = "0s"
	config.Session.CallbackTimeout = "5s"
	config.Credentials.Spotify = shared.SpotifyConfig{}
	if withSpotify {
		config.Credentials.Spotify = shared.SpotifyConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "http://127.0.0.1:" + strconv.Itoa(port) + "/callback",
			Scopes:       []string{"user-top-read"},
			AuthURL:      srv.URL + "/authorize",
			TokenURL:     srv.URL + "/api/token",
			APIURL:       srv.URL + "/v1",
		}
	}

	configPath := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(configPath, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return &testEnv{t: t, remote: remote, configPath: configPath}
}

// browser follows the authorization URL straight to the callback with the given code.
func browser(t *testing.T, code string) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		callback := q.Get("redirect_uri") + "?" + url.Values{"code": {code}, "state": {q.Get("state")}}.Encode()

		go func() {
			resp, err := http.Get(callback)
			if err != nil {
				t.Errorf("callback request failed: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}
}

// run executes the CLI in a fresh runner, as a separate process would.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Output:      output,
		Logger:      shared.NewLogger(&bytes.Buffer{}),
		OpenBrowser: browser(e.t, spotifyCode),
	})
	argv := append([]string{"musicai", "--config", e.configPath}, args...)
	err := newApp(runner).Run(context.Background(), argv)
	return output.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("musicai %s: %v\noutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCommands(t *testing.T) {
	t.Run("auth login persists the session across runs", func(t *testing.T) {
		env := newTestEnv(t, false)

		out := env.mustRun("auth", "login", "-u", "user@example.com", "-p", "secret")
		if !strings.Contains(out, "Logged in") {
			t.Errorf("expected login notification, got %q", out)
		}

		out = env.mustRun("auth", "status", "--json")
		var status authStatus
		if err := json.Unmarshal([]byte(out), &status); err != nil {
			t.Fatalf("failed to decode status: %v\n%s", err, out)
		}
		if !status.LoggedIn {
			t.Error("expected the stored token to be accepted")
		}
		if status.Profile == nil || status.Profile.Email != "user@example.com" {
			t.Errorf("expected profile in status, got %+v", status.Profile)
		}
	})

	t.Run("auth login with bad credentials", func(t *testing.T) {
		env := newTestEnv(t, false)

		_, err := env.run("auth", "login", "-u", "user@example.com", "-p", "wrong")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}

		out := env.mustRun("auth", "status")
		if !strings.Contains(out, "Not logged in") {
			t.Errorf("expected logged out status, got %q", out)
		}
	})

	t.Run("auth logout", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.mustRun("auth", "login", "-u", "user@example.com", "-p", "secret")

		out := env.mustRun("auth", "logout")
		if !strings.Contains(out, "Logged out") {
			t.Errorf("expected logout notification, got %q", out)
		}

		_, err := env.run("tracks", "rising")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated after logout, got %v", err)
		}
	})

	t.Run("tracks rising requires login", func(t *testing.T) {
		env := newTestEnv(t, false)

		_, err := env.run("tracks", "rising")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("tracks rising exports every format", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.mustRun("auth", "login", "-u", "user@example.com", "-p", "secret")

		for _, format := range []string{"text", "csv", "markdown", "json"} {
			out := env.mustRun("tracks", "rising", "--format", format, "--pages", "2")
			if !strings.Contains(out, "Rising Star") {
				t.Errorf("%s: expected track name in output, got %q", format, out)
			}
		}
	})

	t.Run("tracks rising writes to a file", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.mustRun("auth", "login", "-u", "user@example.com", "-p", "secret")

		path := filepath.Join(t.TempDir(), "rising.csv")
		env.mustRun("tracks", "rising", "--format", "csv", "--output", path)

		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "Nova") {
			t.Errorf("expected artist in export, got %q", content)
		}
	})

	t.Run("tracks rising rejects bad flags", func(t *testing.T) {
		env := newTestEnv(t, false)

		_, err := env.run("tracks", "rising", "--format", "xml")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for format, got %v", err)
		}

		_, err = env.run("tracks", "rising", "--min-score", "5", "--max-score", "1")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for scores, got %v", err)
		}
	})

	t.Run("me update requires a field", func(t *testing.T) {
		env := newTestEnv(t, false)

		_, err := env.run("me", "update")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("users update rejects a non-numeric id", func(t *testing.T) {
		env := newTestEnv(t, false)

		_, err := env.run("users", "update", "--full-name", "X", "abc")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("users list requires a superuser", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.mustRun("auth", "login", "-u", "user@example.com", "-p", "secret")

		_, err := env.run("users", "list")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("spotify commands require credentials", func(t *testing.T) {
		env := newTestEnv(t, false)

		for _, args := range [][]string{{"spotify", "login"}, {"spotify", "status"}, {"tracks", "save", "t1"}} {
			_, err := env.run(args...)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("%v: expected ErrMissingCredentials, got %v", args, err)
			}
		}
	})

	t.Run("spotify login links the profile and persists the token", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.mustRun("auth", "login", "-u", "user@example.com", "-p", "secret")

		out := env.mustRun("spotify", "login")
		if !strings.Contains(out, "Spotify connected") {
			t.Errorf("expected connected message, got %q", out)
		}

		env.remote.mu.Lock()
		linked := env.remote.profile.SpotifyID
		name := env.remote.profile.FullName
		env.remote.mu.Unlock()
		if linked != "sp-user" {
			t.Errorf("expected spotify id linked, got %q", linked)
		}
		if name != "Spotify User" {
			t.Errorf("expected empty full name back-filled, got %q", name)
		}

		out = env.mustRun("spotify", "status", "--json")
		var status map[string]any
		if err := json.Unmarshal([]byte(out), &status); err != nil {
			t.Fatalf("failed to decode status: %v\n%s", err, out)
		}
		if status["has_token"] != true || status["has_refresh_token"] != true {
			t.Errorf("expected restored token, got %v", status)
		}

		out = env.mustRun("spotify", "login")
		if !strings.Contains(out, "already connected") {
			t.Errorf("expected held token to skip the redirect, got %q", out)
		}
	})

	t.Run("spotify refresh and logout", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.mustRun("spotify", "login")

		out := env.mustRun("spotify", "refresh")
		if !strings.Contains(out, "Token refreshed") {
			t.Errorf("expected refresh message, got %q", out)
		}

		out = env.mustRun("spotify", "logout")
		if !strings.Contains(out, "Logged out of Spotify") {
			t.Errorf("expected logout notification, got %q", out)
		}

		out = env.mustRun("spotify", "status")
		if !strings.Contains(out, "Not connected") {
			t.Errorf("expected disconnected status, got %q", out)
		}
	})

	t.Run("tracks save", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.mustRun("spotify", "login")

		out := env.mustRun("tracks", "save", "t1")
		if !strings.Contains(out, "Track saved") {
			t.Errorf("expected saved notification, got %q", out)
		}

		env.remote.mu.Lock()
		defer env.remote.mu.Unlock()
		if len(env.remote.saved) != 1 || env.remote.saved[0] != "t1" {
			t.Errorf("expected t1 saved, got %v", env.remote.saved)
		}
	})

	t.Run("playlist generate", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.mustRun("auth", "login", "-u", "user@example.com", "-p", "secret")
		env.mustRun("spotify", "login")

		out := env.mustRun("playlist", "generate", "--format", "text")
		if !strings.Contains(out, "Echo - Deep Cut") {
			t.Errorf("expected playlist track in output, got %q", out)
		}

		env.remote.mu.Lock()
		defer env.remote.mu.Unlock()
		if env.remote.topHits != 4 {
			t.Errorf("expected four top item requests, got %d", env.remote.topHits)
		}
	})

	t.Run("setup config refuses to overwrite without force", func(t *testing.T) {
		env := newTestEnv(t, false)

		_, err := env.run("setup", "config")
		if err == nil {
			t.Fatal("expected error for existing config")
		}

		out := env.mustRun("setup", "config", "--force")
		if !strings.Contains(out, "Config written") {
			t.Errorf("expected confirmation, got %q", out)
		}
	})

	t.Run("setup database", func(t *testing.T) {
		env := newTestEnv(t, false)

		out := env.mustRun("setup", "database")
		if !strings.Contains(out, "Database ready") {
			t.Errorf("expected confirmation, got %q", out)
		}
	})
}
