package models

// AccessToken is returned by the backend login endpoint.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SpotifyToken is the provider OAuth token.
//
// ExpiresAt is unix milliseconds, computed by the client when the token is accepted.
type SpotifyToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Notification colors
const (
	ColorSuccess = "success"
	ColorError   = "error"
	ColorInfo    = "info"
)

type Notification struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	Color        string `json:"color,omitempty"`
	ShowProgress bool   `json:"show_progress,omitempty"`
}
