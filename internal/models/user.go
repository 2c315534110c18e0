package models

// UserProfile is the backend user resource.
type UserProfile struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	SpotifyID   string `json:"spotify_id,omitempty"`
}

// UserProfileUpdate carries a partial update. Nil fields are omitted from the request body.
type UserProfileUpdate struct {
	Email       *string `json:"email,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	Password    *string `json:"password,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
	SpotifyID   *string `json:"spotify_id,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u UserProfileUpdate) IsEmpty() bool {
	return u.Email == nil && u.FullName == nil && u.Password == nil &&
		u.IsActive == nil && u.IsSuperuser == nil && u.SpotifyID == nil
}

type UserProfileCreate struct {
	Email       string  `json:"email"`
	FullName    *string `json:"full_name,omitempty"`
	Password    *string `json:"password,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

// SpotifyProfile is the subset of the provider /me response the client uses.
type SpotifyProfile struct {
	ID   string `json:"id"`
	Name string `json:"display_name"`
}

// PasswordReset is the body of the reset-password endpoint.
type PasswordReset struct {
	NewPassword string `json:"new_password"`
	Token       string `json:"token"`
}

// Message is the generic backend acknowledgement.
type Message struct {
	Msg string `json:"msg"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
