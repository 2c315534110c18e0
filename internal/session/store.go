package session

import (
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
)

// Store is the single owner of in-memory session state.
//
// Mutations perform no I/O and are atomic. Accessors return copies.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	token      string
	loggedIn   bool
	logInError bool
	profile    *models.UserProfile
	users      []models.UserProfile

	notifications []models.Notification

	spotifyAuthCode  string
	spotifyAuthState string
	spotifyToken     *models.SpotifyToken
	loggedInSpotify  bool

	risingTracks []models.RisingTrack
	currentTrack *models.RisingTrack
	userPlaylist *models.UserPlaylist
}

type StoreOption func(*Store)

// WithClock replaces the wall clock used to stamp token expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Store) SetLoggedIn(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = v
}

func (s *Store) SetLogInError(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logInError = v
}

// SetUserProfile replaces the profile wholesale. A nil profile clears it.
func (s *Store) SetUserProfile(p *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.profile = nil
		return
	}
	cp := *p
	s.profile = &cp
}

func (s *Store) SetUsers(users []models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = slices.Clone(users)
}

func (s *Store) SetSpotifyAuthCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spotifyAuthCode = code
}

func (s *Store) SetSpotifyAuthState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spotifyAuthState = state
}

// SetSpotifyToken accepts a token from the provider and returns the stored copy.
//
// ExpiresAt is stamped as now + ExpiresIn seconds, and a missing refresh token
// is replaced by the previous one.
func (s *Store) SetSpotifyToken(t models.SpotifyToken) models.SpotifyToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ExpiresAt = s.now().UnixMilli() + t.ExpiresIn*1000
	if t.RefreshToken == "" && s.spotifyToken != nil {
		t.RefreshToken = s.spotifyToken.RefreshToken
	}
	s.spotifyToken = &t
	return t
}

// RestoreSpotifyToken installs a previously accepted token as is, keeping its ExpiresAt.
func (s *Store) RestoreSpotifyToken(t models.SpotifyToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spotifyToken = &t
}

// ClearSpotifyToken drops the provider token, code and state and marks the provider session logged out.
func (s *Store) ClearSpotifyToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spotifyToken = nil
	s.spotifyAuthCode = ""
	s.spotifyAuthState = ""
	s.loggedInSpotify = false
}

func (s *Store) SetLoggedInSpotify(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedInSpotify = v
}

// AddNotification appends n to the queue, assigning an id when n has none, and returns the id.
func (s *Store) AddNotification(n models.Notification) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = shared.GenerateID()
	}
	s.notifications = append(s.notifications, n)
	return n.ID
}

// RemoveNotification removes the notification with the given id and reports whether it was queued.
func (s *Store) RemoveNotification(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.notifications, func(n models.Notification) bool { return n.ID == id })
	if i < 0 {
		return false
	}
	s.notifications = slices.Delete(s.notifications, i, i+1)
	return true
}

// SetRisingTracks merges a batch into the collection.
//
// Records whose id is already present are skipped, never replaced. Presentation fields of
// appended records are derived here. Returns the number of records appended.
func (s *Store) SetRisingTracks(batch []models.RisingTrack) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.risingTracks)+len(batch))
	for _, t := range s.risingTracks {
		seen[t.ID] = struct{}{}
	}

	added := 0
	for _, t := range batch {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		t.Artists = slices.Clone(t.Artists)
		t.Derive()
		s.risingTracks = append(s.risingTracks, t)
		added++
	}
	return added
}

func (s *Store) SetCurrentTrack(t *models.RisingTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == nil {
		s.currentTrack = nil
		return
	}
	cp := *t
	cp.Derive()
	s.currentTrack = &cp
}

func (s *Store) SetUserPlaylist(p *models.UserPlaylist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.userPlaylist = nil
		return
	}
	cp := *p
	cp.Tracks = slices.Clone(p.Tracks)
	s.userPlaylist = &cp
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

func (s *Store) LogInError() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logInError
}

// UserProfile returns a copy of the profile, or nil when none is loaded.
func (s *Store) UserProfile() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	cp := *s.profile
	return &cp
}

// HasAdminAccess reports whether the loaded profile is an active superuser.
func (s *Store) HasAdminAccess() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil && s.profile.IsSuperuser && s.profile.IsActive
}

func (s *Store) Users() []models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

// FirstNotification returns the oldest queued notification.
func (s *Store) FirstNotification() (models.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.notifications) == 0 {
		return models.Notification{}, false
	}
	return s.notifications[0], true
}

func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notifications)
}

func (s *Store) SpotifyAuthCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spotifyAuthCode
}

func (s *Store) SpotifyAuthState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spotifyAuthState
}

// SpotifyToken returns a copy of the provider token, or nil when none is held.
func (s *Store) SpotifyToken() *models.SpotifyToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.spotifyToken == nil {
		return nil
	}
	cp := *s.spotifyToken
	return &cp
}

func (s *Store) IsLoggedInSpotify() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedInSpotify
}

func (s *Store) RisingTracks() []models.RisingTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.risingTracks)
}

func (s *Store) CurrentTrack() *models.RisingTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentTrack == nil {
		return nil
	}
	cp := *s.currentTrack
	return &cp
}

func (s *Store) UserPlaylist() *models.UserPlaylist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userPlaylist == nil {
		return nil
	}
	cp := *s.userPlaylist
	cp.Tracks = slices.Clone(s.userPlaylist.Tracks)
	return &cp
}
