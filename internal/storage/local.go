package storage

import (
	"fmt"
	"strconv"
)

// Session keys
const (
	KeyToken                 = "token"
	KeySpotifyAuthCode       = "spotify_auth_code"
	KeySpotifyToken          = "spotify_token"
	KeySpotifyRefreshToken   = "spotify_refresh_token"
	KeySpotifyTokenExpiresIn = "spotify_token_expires_in"
	KeySpotifyTokenExpiresAt = "spotify_token_expires_at"
)

// SpotifyKeys lists every key owned by the provider session.
var SpotifyKeys = []string{
	KeySpotifyAuthCode,
	KeySpotifyToken,
	KeySpotifyRefreshToken,
	KeySpotifyTokenExpiresIn,
	KeySpotifyTokenExpiresAt,
}

// Local is a typed view over the session keys of a [Storage].
type Local struct {
	s Storage
}

func NewLocal(s Storage) *Local {
	return &Local{s: s}
}

func (l *Local) Token() (string, error) { return l.s.Get(KeyToken) }
func (l *Local) SaveToken(token string) error { return l.s.Set(KeyToken, token) }
func (l *Local) RemoveToken() error { return l.s.Remove(KeyToken) }

func (l *Local) SpotifyAuthCode() (string, error) { return l.s.Get(KeySpotifyAuthCode) }
func (l *Local) SaveSpotifyAuthCode(code string) error { return l.s.Set(KeySpotifyAuthCode, code) }
func (l *Local) RemoveSpotifyAuthCode() error { return l.s.Remove(KeySpotifyAuthCode) }

func (l *Local) SpotifyToken() (string, error) { return l.s.Get(KeySpotifyToken) }
func (l *Local) SaveSpotifyToken(token string) error { return l.s.Set(KeySpotifyToken, token) }
func (l *Local) RemoveSpotifyToken() error { return l.s.Remove(KeySpotifyToken) }

func (l *Local) SpotifyRefreshToken() (string, error) { return l.s.Get(KeySpotifyRefreshToken) }
func (l *Local) SaveSpotifyRefreshToken(token string) error {
	return l.s.Set(KeySpotifyRefreshToken, token)
}
func (l *Local) RemoveSpotifyRefreshToken() error { return l.s.Remove(KeySpotifyRefreshToken) }

func (l *Local) SpotifyExpiresIn() (int64, error) { return l.getInt(KeySpotifyTokenExpiresIn) }
func (l *Local) SaveSpotifyExpiresIn(seconds int64) error {
	return l.s.Set(KeySpotifyTokenExpiresIn, strconv.FormatInt(seconds, 10))
}
func (l *Local) RemoveSpotifyExpiresIn() error { return l.s.Remove(KeySpotifyTokenExpiresIn) }

// SpotifyExpiresAt returns the persisted expiry in unix milliseconds, or 0 when absent.
func (l *Local) SpotifyExpiresAt() (int64, error) { return l.getInt(KeySpotifyTokenExpiresAt) }
func (l *Local) SaveSpotifyExpiresAt(ms int64) error {
	return l.s.Set(KeySpotifyTokenExpiresAt, strconv.FormatInt(ms, 10))
}
func (l *Local) RemoveSpotifyExpiresAt() error { return l.s.Remove(KeySpotifyTokenExpiresAt) }

// RemoveSpotify removes every provider key, returning the first failure.
func (l *Local) RemoveSpotify() error {
	for _, key := range SpotifyKeys {
		if err := l.s.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

func (l *Local) getInt(key string) (int64, error) {
	v, err := l.s.Get(key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}
