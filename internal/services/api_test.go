package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
	tu "github.com/desertthunder/musicai/internal/testing"
)

// fakeTop serves canned top-item pages keyed by "type/time_range".
type fakeTop struct {
	mu    sync.Mutex
	pages map[string][]string
	fail  string
	calls []string
}

func (f *fakeTop) UserTop(ctx context.Context, token, itemType, timeRange string) (*models.TopItems, error) {
	key := itemType + "/" + timeRange
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if key == f.fail {
		return nil, &StatusError{StatusCode: http.StatusBadGateway, Method: http.MethodGet, URL: "/me/top/" + itemType}
	}

	items := make([]json.RawMessage, 0, len(f.pages[key]))
	for _, id := range f.pages[key] {
		items = append(items, json.RawMessage(`{"id":"`+id+`"}`))
	}
	return &models.TopItems{Items: items}, nil
}

func ids(t *testing.T, items []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(items))
	for _, raw := range items {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("failed to decode item %s: %v", raw, err)
		}
		out = append(out, v.ID)
	}
	return out
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			if srv.baseURL != "http://example.com/api/v1" {
				t.Errorf("expected baseURL 'http://example.com/api/v1', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("LogInGetToken", func(t *testing.T) {
		t.Run("posts form credentials", func(t *testing.T) {
			server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/v1/login/access-token" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
					t.Errorf("expected form content type, got %s", ct)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}
				if r.PostForm.Get("username") != "me@example.com" || r.PostForm.Get("password") != "secret" {
					t.Errorf("unexpected form %v", r.PostForm)
				}
				tu.WriteJSON(t, w, http.StatusOK, map[string]string{"access_token": "T", "token_type": "bearer"})
			}))

			token, err := NewAPIService(server.URL, nil).LogInGetToken(context.Background(), "me@example.com", "secret")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token.AccessToken != "T" {
				t.Errorf("expected access token T, got %s", token.AccessToken)
			}
		})

		t.Run("non-2xx is an error", func(t *testing.T) {
			server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tu.WriteJSON(t, w, http.StatusBadRequest, map[string]string{"detail": "Incorrect email or password"})
			}))

			_, err := NewAPIService(server.URL, nil).LogInGetToken(context.Background(), "me@example.com", "bad")
			if err == nil {
				t.Fatal("expected error")
			}
			if StatusCode(err) != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", StatusCode(err))
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "Incorrect email") {
				t.Errorf("expected body in error message, got %v", err)
			}
		})
	})

	t.Run("GetMe", func(t *testing.T) {
		t.Run("sends bearer token", func(t *testing.T) {
			server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer T" {
					t.Errorf("expected bearer header, got %q", got)
				}
				tu.WriteJSON(t, w, http.StatusOK, models.UserProfile{ID: 1, Email: "me@example.com", IsActive: true})
			}))

			profile, err := NewAPIService(server.URL, nil).GetMe(context.Background(), "T")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if profile.ID != 1 || profile.Email != "me@example.com" {
				t.Errorf("unexpected profile %+v", profile)
			}
		})

		t.Run("401 unwraps to ErrNotAuthenticated", func(t *testing.T) {
			server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))

			_, err := NewAPIService(server.URL, nil).GetMe(context.Background(), "stale")
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if !IsUnauthorized(err) {
				t.Error("expected IsUnauthorized to be true")
			}
		})

		t.Run("request failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			_, err := NewAPIService("http://backend", client).GetMe(context.Background(), "T")
			if err == nil {
				t.Fatal("expected error")
			}
			if StatusCode(err) != 0 {
				t.Errorf("expected no status for transport error, got %d", StatusCode(err))
			}
		})

		t.Run("decode failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(tu.NewResponse(http.StatusOK, "{"), nil)}
			_, err := NewAPIService("http://backend", client).GetMe(context.Background(), "T")
			if err == nil || !strings.Contains(err.Error(), "decode") {
				t.Errorf("expected decode error, got %v", err)
			}
		})
	})

	t.Run("UpdateMe omits unset fields", func(t *testing.T) {
		server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.URL.Path != "/api/v1/users/me" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if len(body) != 1 || body["full_name"] != "New Name" {
				t.Errorf("unexpected body %v", body)
			}
			tu.WriteJSON(t, w, http.StatusOK, models.UserProfile{ID: 1, FullName: "New Name"})
		}))

		update := models.UserProfileUpdate{FullName: models.StringPtr("New Name")}
		profile, err := NewAPIService(server.URL, nil).UpdateMe(context.Background(), "T", update)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if profile.FullName != "New Name" {
			t.Errorf("expected updated name, got %s", profile.FullName)
		}
	})

	t.Run("User administration paths", func(t *testing.T) {
		var seen []string
		server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
			switch r.URL.Path {
			case "/api/v1/users/":
				if r.Method == http.MethodGet {
					tu.WriteJSON(t, w, http.StatusOK, []models.UserProfile{{ID: 1}, {ID: 2}})
					return
				}
				tu.WriteJSON(t, w, http.StatusOK, models.UserProfile{ID: 3})
			default:
				tu.WriteJSON(t, w, http.StatusOK, models.UserProfile{ID: 4})
			}
		}))

		ctx := context.Background()
		srv := NewAPIService(server.URL, nil)

		users, err := srv.GetUsers(ctx, "T")
		if err != nil || len(users) != 2 {
			t.Fatalf("GetUsers() = %v, %v", users, err)
		}
		if _, err := srv.UpdateUser(ctx, "T", 7, models.UserProfileUpdate{IsActive: models.BoolPtr(false)}); err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}
		if _, err := srv.CreateUser(ctx, models.UserProfileCreate{Email: "new@example.com"}); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		if _, err := srv.CreateUserFromAdmin(ctx, "T", models.UserProfileCreate{Email: "new@example.com"}); err != nil {
			t.Fatalf("CreateUserFromAdmin() error = %v", err)
		}

		expected := []string{
			"GET /api/v1/users/ Bearer T",
			"PUT /api/v1/users/7 Bearer T",
			"POST /api/v1/users/create ",
			"POST /api/v1/users/ Bearer T",
		}
		if strings.Join(seen, "|") != strings.Join(expected, "|") {
			t.Errorf("expected requests %v, got %v", expected, seen)
		}
	})

	t.Run("Password flows", func(t *testing.T) {
		server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v1/password-recovery/me@example.com":
				tu.WriteJSON(t, w, http.StatusOK, models.Message{Msg: "Password recovery email sent"})
			case "/api/v1/reset-password/":
				var body models.PasswordReset
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.NewPassword != "new-secret" || body.Token != "reset-token" {
					t.Errorf("unexpected reset body %+v", body)
				}
				tu.WriteJSON(t, w, http.StatusOK, models.Message{Msg: "Password updated successfully"})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		}))

		srv := NewAPIService(server.URL, nil)
		msg, err := srv.PasswordRecovery(context.Background(), "me@example.com")
		if err != nil || msg.Msg == "" {
			t.Errorf("PasswordRecovery() = %v, %v", msg, err)
		}
		msg, err = srv.ResetPassword(context.Background(), "new-secret", "reset-token")
		if err != nil || msg.Msg == "" {
			t.Errorf("ResetPassword() = %v, %v", msg, err)
		}
	})

	t.Run("GetRisingTracks encodes filters", func(t *testing.T) {
		server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			checks := map[string]string{
				"lag_days":          "7",
				"order_by":          "musicai_score",
				"max_playcount":     "10000000000",
				"min_musicai_score": "1",
				"max_probability":   "1",
				"skip":              "100",
				"limit":             "100",
			}
			for k, want := range checks {
				if got := q.Get(k); got != want {
					t.Errorf("expected %s=%s, got %q", k, want, got)
				}
			}
			if q.Get("max_growth_rate") == "" {
				t.Error("expected max_growth_rate to be sent")
			}
			tu.WriteJSON(t, w, http.StatusOK, []models.RisingTrack{{ID: "a"}, {ID: "b"}})
		}))

		params := models.DefaultRisingTrackParams().Next()
		tracks, err := NewAPIService(server.URL, nil).GetRisingTracks(context.Background(), "T", params)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(tracks))
		}
	})

	t.Run("GetUserPlaylist", func(t *testing.T) {
		top := &fakeTop{pages: map[string][]string{
			"artists/long_term":  {"artist-long"},
			"tracks/long_term":   {"l1", "l2"},
			"tracks/medium_term": {"m1"},
			"tracks/short_term":  {"s1", "s2"},
		}}

		t.Run("aggregates top items in order", func(t *testing.T) {
			var posted models.PlaylistRequest
			server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/v1/users/me/playlist" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer T" {
					t.Errorf("expected backend bearer token, got %q", got)
				}
				if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				tu.WriteJSON(t, w, http.StatusOK, models.UserPlaylist{PlaylistID: "p1", PlaylistURL: "https://open.spotify.com/playlist/p1"})
			}))

			playlist, err := NewAPIService(server.URL, nil).GetUserPlaylist(context.Background(), top, "T", "S")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if playlist.PlaylistID != "p1" {
				t.Errorf("expected playlist p1, got %s", playlist.PlaylistID)
			}

			if got := strings.Join(ids(t, posted.TopTracks), ","); got != "l1,l2,m1,s1,s2" {
				t.Errorf("expected top_tracks long++medium++short, got %s", got)
			}
			if got := strings.Join(ids(t, posted.TopArtists), ","); got != "artist-long" {
				t.Errorf("expected top_artists long term only, got %s", got)
			}
			if posted.SpotifyToken != "S" {
				t.Errorf("expected spotify token S, got %s", posted.SpotifyToken)
			}
			if len(top.calls) != 4 {
				t.Errorf("expected 4 top-item calls, got %d", len(top.calls))
			}
		})

		t.Run("one failure fails the join", func(t *testing.T) {
			failing := &fakeTop{pages: top.pages, fail: "tracks/medium_term"}
			posted := false
			server := tu.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				posted = true
			}))

			_, err := NewAPIService(server.URL, nil).GetUserPlaylist(context.Background(), failing, "T", "S")
			if err == nil {
				t.Fatal("expected error")
			}
			if StatusCode(err) != http.StatusBadGateway {
				t.Errorf("expected wrapped status 502, got %d", StatusCode(err))
			}
			if posted {
				t.Error("playlist should not be posted after a failed fetch")
			}
		})
	})
}
