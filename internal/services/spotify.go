// Spotify Web API client
//
// Endpoint reference: https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	topItemsLimit = 50
)

// SpotifyService performs the OAuth2 grants and the bearer-authenticated reads the client needs.
//
// It holds no token; callers pass one on every request.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyService creates a new Spotify client from the configured credentials.
//
// client defaults to [http.DefaultClient] and is used for both token and API requests.
func NewSpotifyService(cfg shared.SpotifyConfig, client *http.Client, logger *log.Logger) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	authURL, tokenURL, apiURL := cfg.AuthURL, cfg.TokenURL, cfg.APIURL
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	if apiURL == "" {
		apiURL = spotifyBaseURL
	}

	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &SpotifyService{
		config:     config,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: client,
		logger:     logger,
	}, nil
}

// AuthURL returns the authorization URL the user must visit. The state parameter is omitted when empty.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// RedirectURL returns the configured OAuth2 redirect URI.
func (s *SpotifyService) RedirectURL() string {
	return s.config.RedirectURL
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*models.SpotifyToken, error) {
	if code == "" {
		return nil, shared.ErrNoAuthCode
	}

	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return toSpotifyToken(token, time.Now()), nil
}

// Refresh requests a new access token with the refresh_token grant.
//
// When the response omits a refresh token the one passed in is carried over.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*models.SpotifyToken, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	return toSpotifyToken(token, time.Now()), nil
}

// toSpotifyToken converts an [oauth2.Token], recovering expires_in and scope from the raw response.
func toSpotifyToken(t *oauth2.Token, now time.Time) *models.SpotifyToken {
	token := &models.SpotifyToken{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}

	if scope, ok := t.Extra("scope").(string); ok {
		token.Scope = scope
	}

	if token.ExpiresIn == 0 {
		switch v := t.Extra("expires_in").(type) {
		case float64:
			token.ExpiresIn = int64(v)
		case string:
			fmt.Sscan(v, &token.ExpiresIn)
		}
	}
	if token.ExpiresIn == 0 && !t.Expiry.IsZero() {
		token.ExpiresIn = int64(math.Round(t.Expiry.Sub(now).Seconds()))
	}
	return token
}

// Me fetches the provider profile. Any failure is logged and reported as nil.
func (s *SpotifyService) Me(ctx context.Context, token string) *models.SpotifyProfile {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/me", nil)
	if err != nil {
		s.logger.Warn("failed to build spotify profile request", "error", err)
		return nil
	}

	var profile models.SpotifyProfile
	if err := doRequest(s.httpClient, req, token, &profile); err != nil {
		s.logger.Warn("failed to fetch spotify profile", "error", err)
		return nil
	}
	return &profile
}

// UserTop fetches up to 50 of the user's top artists or tracks for a ranking window.
func (s *SpotifyService) UserTop(ctx context.Context, token, itemType, timeRange string) (*models.TopItems, error) {
	if itemType != TopArtists && itemType != TopTracks {
		return nil, fmt.Errorf("%w: top item type %q", shared.ErrInvalidArgument, itemType)
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprint(topItemsLimit))
	params.Set("offset", "0")
	params.Set("time_range", timeRange)

	endpoint := fmt.Sprintf("%s/me/top/%s?%s", s.apiURL, itemType, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var items models.TopItems
	if err := doRequest(s.httpClient, req, token, &items); err != nil {
		return nil, err
	}
	return &items, nil
}

// SaveTrack adds a track to the user's library.
func (s *SpotifyService) SaveTrack(ctx context.Context, token, trackID string) error {
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	req, err := newJSONRequest(ctx, http.MethodPut, s.apiURL+"/me/tracks", []string{trackID})
	if err != nil {
		return err
	}
	return doRequest(s.httpClient, req, token, nil)
}
