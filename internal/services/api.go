// Client for the musicai REST backend
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/google/go-querystring/query"
	"golang.org/x/sync/errgroup"
)

const apiPrefix = "/api/v1"

// APIService issues requests to the musicai backend.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new backend client rooted at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/") + apiPrefix,
		httpClient: client,
	}
}

func (a *APIService) endpoint(path string) string {
	return a.baseURL + path
}

func (a *APIService) doJSON(ctx context.Context, method, path, token string, body, result any) error {
	req, err := newJSONRequest(ctx, method, a.endpoint(path), body)
	if err != nil {
		return err
	}
	return doRequest(a.httpClient, req, token, result)
}

// LogInGetToken posts form-encoded credentials to the token endpoint.
func (a *APIService) LogInGetToken(ctx context.Context, username, password string) (*models.AccessToken, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/login/access-token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token models.AccessToken
	if err := doRequest(a.httpClient, req, "", &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// GetMe retrieves the profile of the token owner.
func (a *APIService) GetMe(ctx context.Context, token string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := a.doJSON(ctx, http.MethodGet, "/users/me", token, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateMe applies a partial update to the token owner and returns the stored profile.
func (a *APIService) UpdateMe(ctx context.Context, token string, data models.UserProfileUpdate) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := a.doJSON(ctx, http.MethodPut, "/users/me", token, data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetUsers lists all users. Requires a superuser token.
func (a *APIService) GetUsers(ctx context.Context, token string) ([]models.UserProfile, error) {
	var users []models.UserProfile
	if err := a.doJSON(ctx, http.MethodGet, "/users/", token, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser updates the user with the given id. Requires a superuser token.
func (a *APIService) UpdateUser(ctx context.Context, token string, id int, data models.UserProfileUpdate) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := a.doJSON(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), token, data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateUser registers a user through the open signup endpoint.
func (a *APIService) CreateUser(ctx context.Context, data models.UserProfileCreate) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := a.doJSON(ctx, http.MethodPost, "/users/create", "", data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateUserFromAdmin creates a user with a superuser token.
func (a *APIService) CreateUserFromAdmin(ctx context.Context, token string, data models.UserProfileCreate) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := a.doJSON(ctx, http.MethodPost, "/users/", token, data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// PasswordRecovery asks the backend to send a recovery email.
func (a *APIService) PasswordRecovery(ctx context.Context, email string) (*models.Message, error) {
	var msg models.Message
	path := "/password-recovery/" + url.PathEscape(email)
	if err := a.doJSON(ctx, http.MethodPost, path, "", nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ResetPassword sets a new password using the token from a recovery email.
func (a *APIService) ResetPassword(ctx context.Context, password, token string) (*models.Message, error) {
	var msg models.Message
	body := models.PasswordReset{NewPassword: password, Token: token}
	if err := a.doJSON(ctx, http.MethodPost, "/reset-password/", "", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetRisingTracks queries track analytics with the given filters.
func (a *APIService) GetRisingTracks(ctx context.Context, token string, params models.RisingTrackParams) ([]models.RisingTrack, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	var tracks []models.RisingTrack
	path := "/tracks/rising-tracks?" + values.Encode()
	if err := a.doJSON(ctx, http.MethodGet, path, token, nil, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// CreatePlaylist posts collected listening history to the playlist endpoint.
func (a *APIService) CreatePlaylist(ctx context.Context, token string, data models.PlaylistRequest) (*models.UserPlaylist, error) {
	var playlist models.UserPlaylist
	if err := a.doJSON(ctx, http.MethodPost, "/users/me/playlist", token, data, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// GetUserPlaylist collects the user's top items from the provider and asks the backend for a playlist.
//
// The four top-item requests run concurrently; any failure fails the whole call.
// top_tracks is long ++ medium ++ short term tracks and top_artists is long term artists.
func (a *APIService) GetUserPlaylist(ctx context.Context, top TopItemsFetcher, token, spotifyToken string) (*models.UserPlaylist, error) {
	requests := []struct{ itemType, timeRange string }{
		{TopArtists, LongTerm},
		{TopTracks, LongTerm},
		{TopTracks, MediumTerm},
		{TopTracks, ShortTerm},
	}
	pages := make([]*models.TopItems, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range requests {
		g.Go(func() error {
			page, err := top.UserTop(gctx, spotifyToken, r.itemType, r.timeRange)
			if err != nil {
				return fmt.Errorf("top %s (%s): %w", r.itemType, r.timeRange, err)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracks := make([]json.RawMessage, 0, len(pages[1].Items)+len(pages[2].Items)+len(pages[3].Items))
	for _, p := range pages[1:] {
		tracks = append(tracks, p.Items...)
	}

	return a.CreatePlaylist(ctx, token, models.PlaylistRequest{
		TopArtists:   pages[0].Items,
		TopTracks:    tracks,
		SpotifyToken: spotifyToken,
	})
}
