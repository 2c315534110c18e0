package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/services"
	"github.com/desertthunder/musicai/internal/storage"
)

func unauthorized(path string) error {
	return &services.StatusError{StatusCode: http.StatusUnauthorized, Method: http.MethodGet, URL: path}
}

// fakeBackend records calls and returns canned responses.
type fakeBackend struct {
	mu sync.Mutex

	loginToken *models.AccessToken
	loginErr   error

	me      *models.UserProfile
	meErr   error
	meToken []string

	updates   []models.UserProfileUpdate
	updateErr error

	users    []models.UserProfile
	usersErr error

	recoveryErr error
	resetErr    error

	rising    []models.RisingTrack
	risingErr error

	playlist    *models.UserPlaylist
	playlistErr error
	playlistReq struct{ token, spotifyToken string }
}

func (f *fakeBackend) LogInGetToken(ctx context.Context, username, password string) (*models.AccessToken, error) {
	return f.loginToken, f.loginErr
}

func (f *fakeBackend) GetMe(ctx context.Context, token string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meToken = append(f.meToken, token)
	if f.meErr != nil {
		return nil, f.meErr
	}
	cp := *f.me
	return &cp, nil
}

func (f *fakeBackend) UpdateMe(ctx context.Context, token string, data models.UserProfileUpdate) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, data)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	p := *f.me
	if data.SpotifyID != nil {
		p.SpotifyID = *data.SpotifyID
	}
	if data.FullName != nil {
		p.FullName = *data.FullName
	}
	if data.Email != nil {
		p.Email = *data.Email
	}
	f.me = &p
	cp := p
	return &cp, nil
}

func (f *fakeBackend) GetUsers(ctx context.Context, token string) ([]models.UserProfile, error) {
	return f.users, f.usersErr
}

func (f *fakeBackend) UpdateUser(ctx context.Context, token string, id int, data models.UserProfileUpdate) (*models.UserProfile, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u := models.UserProfile{ID: id, Email: "user@example.com"}
	if data.FullName != nil {
		u.FullName = *data.FullName
	}
	return &u, nil
}

func (f *fakeBackend) CreateUser(ctx context.Context, data models.UserProfileCreate) (*models.UserProfile, error) {
	return &models.UserProfile{ID: 10, Email: data.Email}, nil
}

func (f *fakeBackend) CreateUserFromAdmin(ctx context.Context, token string, data models.UserProfileCreate) (*models.UserProfile, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return &models.UserProfile{ID: 11, Email: data.Email}, nil
}

func (f *fakeBackend) PasswordRecovery(ctx context.Context, email string) (*models.Message, error) {
	if f.recoveryErr != nil {
		return nil, f.recoveryErr
	}
	return &models.Message{Msg: "sent"}, nil
}

func (f *fakeBackend) ResetPassword(ctx context.Context, password, token string) (*models.Message, error) {
	if f.resetErr != nil {
		return nil, f.resetErr
	}
	return &models.Message{Msg: "reset"}, nil
}

func (f *fakeBackend) GetRisingTracks(ctx context.Context, token string, params models.RisingTrackParams) ([]models.RisingTrack, error) {
	return f.rising, f.risingErr
}

func (f *fakeBackend) GetUserPlaylist(ctx context.Context, top services.TopItemsFetcher, token, spotifyToken string) (*models.UserPlaylist, error) {
	f.playlistReq.token = token
	f.playlistReq.spotifyToken = spotifyToken
	return f.playlist, f.playlistErr
}

// fakeProvider stands in for the Spotify client.
type fakeProvider struct {
	exchangeToken *models.SpotifyToken
	exchangeErr   error
	exchangeCodes []string

	refreshToken *models.SpotifyToken
	refreshErr   error
	refreshCalls []string

	profile *models.SpotifyProfile
	saved   []string
	saveErr error
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*models.SpotifyToken, error) {
	p.exchangeCodes = append(p.exchangeCodes, code)
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	cp := *p.exchangeToken
	return &cp, nil
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*models.SpotifyToken, error) {
	p.refreshCalls = append(p.refreshCalls, refreshToken)
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	cp := *p.refreshToken
	return &cp, nil
}

func (p *fakeProvider) Me(ctx context.Context, token string) *models.SpotifyProfile {
	return p.profile
}

func (p *fakeProvider) UserTop(ctx context.Context, token, itemType, timeRange string) (*models.TopItems, error) {
	return &models.TopItems{Items: []json.RawMessage{json.RawMessage(`{"id":"x"}`)}}, nil
}

func (p *fakeProvider) SaveTrack(ctx context.Context, token, trackID string) error {
	p.saved = append(p.saved, token+":"+trackID)
	return p.saveErr
}

// fakeRedirector completes the authorization flow immediately with code.
type fakeRedirector struct {
	actions *Actions
	code    string
	urls    []string
	states  []string
}

func (r *fakeRedirector) Redirect(ctx context.Context, authURL, state string) error {
	r.urls = append(r.urls, authURL)
	r.states = append(r.states, state)
	if r.code == "" {
		return nil
	}
	return r.actions.ReceiveSpotifyAuthCode(ctx, r.code)
}

type fixture struct {
	actions  *Actions
	store    *Store
	backing  *storage.MemoryStorage
	local    *storage.Local
	route    *Route
	api      *fakeBackend
	provider *fakeProvider
	now      time.Time
}

func newFixture() *fixture {
	now := time.UnixMilli(1_700_000_000_000)
	f := &fixture{
		backing:  storage.NewMemoryStorage(),
		route:    NewRoute(PathLogin),
		api:      &fakeBackend{me: &models.UserProfile{ID: 1, Email: "me@example.com", IsActive: true}},
		provider: &fakeProvider{},
		now:      now,
	}
	f.local = storage.NewLocal(f.backing)
	f.store = NewStore(WithClock(func() time.Time { return f.now }))
	f.actions = NewActions(Options{
		Store:     f.store,
		Local:     f.local,
		API:       f.api,
		Spotify:   f.provider,
		Navigator: f.route,
	})
	return f
}

// failingStorage rejects writes to one key.
type failingStorage struct {
	*storage.MemoryStorage
	key string
}

func (s failingStorage) Set(key, value string) error {
	if key == s.key {
		return errors.New("disk full")
	}
	return s.MemoryStorage.Set(key, value)
}

// failWrites swaps the fixture's storage for one that rejects writes to key.
func (f *fixture) failWrites(key string) {
	f.local = storage.NewLocal(failingStorage{MemoryStorage: f.backing, key: key})
	f.actions = NewActions(Options{
		Store:     f.store,
		Local:     f.local,
		API:       f.api,
		Spotify:   f.provider,
		Navigator: f.route,
	})
}

func (f *fixture) stored(key string) string {
	v, _ := f.backing.Get(key)
	return v
}
