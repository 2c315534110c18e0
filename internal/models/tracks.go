package models

import (
	"encoding/json"
	"strings"
)

type Track struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	Explicit    bool   `json:"explicit,omitempty"`
	DurationMs  int    `json:"duration_ms,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ISRC        string `json:"isrc,omitempty"`
	AlbumID     string `json:"album_id"`
}

type Artist struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Verified bool   `json:"verified,omitempty"`
	Active   bool   `json:"active,omitempty"`
}

type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	TotalTracks int    `json:"total_tracks,omitempty"`
	Type        string `json:"type,omitempty"`
	Cover       string `json:"cover,omitempty"`
	LabelID     string `json:"label_id,omitempty"`
}

// Playback tracks the preview state of a rising track.
type Playback struct {
	PreviewURL string  `json:"preview_url,omitempty"`
	Progress   float64 `json:"progress"`
	Playing    bool    `json:"playing"`
}

// RisingTrack is a track analytics record returned by the rising-tracks endpoint.
//
// Name, ArtistsStr, AlbumName, Player, Progress and ScoreGrowth are derived on the client.
type RisingTrack struct {
	ID               string   `json:"id"`
	Playcount        float64  `json:"playcount"`
	Chg              float64  `json:"chg"`
	GrowthRate       float64  `json:"growth_rate"`
	PeriodDays       int      `json:"period_days"`
	Prediction       *float64 `json:"prediction,omitempty"`
	Probability      *float64 `json:"probability,omitempty"`
	MusicaiScore     *float64 `json:"musicai_score,omitempty"`
	DaysSinceRelease *int     `json:"days_since_release,omitempty"`
	Track            Track    `json:"track"`
	Artists          []Artist `json:"artists"`
	Album            Album    `json:"album"`

	Name        string    `json:"name,omitempty"`
	ArtistsStr  string    `json:"artists_str,omitempty"`
	AlbumName   string    `json:"album_name,omitempty"`
	Player      *Playback `json:"player,omitempty"`
	Progress    float64   `json:"progress"`
	ScoreGrowth float64   `json:"score_growth"`
}

// ArtistNames joins the artist names with ", ".
func (t RisingTrack) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// Derive fills the presentation fields from the nested track, artists and album.
func (t *RisingTrack) Derive() {
	t.Name = t.Track.Name
	t.ArtistsStr = t.ArtistNames()
	t.AlbumName = t.Album.Name
	t.Player = &Playback{PreviewURL: t.Track.PreviewURL}
	t.Progress = 0
	t.ScoreGrowth = 0
	if t.MusicaiScore != nil {
		t.ScoreGrowth = *t.MusicaiScore * t.GrowthRate
	}
}

// RisingTrackParams are the query filters of the rising-tracks endpoint.
type RisingTrackParams struct {
	LagDays         int     `url:"lag_days" json:"lag_days"`
	OrderBy         string  `url:"order_by" json:"order_by"`
	MinGrowthRate   float64 `url:"min_growth_rate" json:"min_growth_rate"`
	MaxGrowthRate   float64 `url:"max_growth_rate" json:"max_growth_rate"`
	MinPlaycount    int64   `url:"min_playcount" json:"min_playcount"`
	MaxPlaycount    int64   `url:"max_playcount" json:"max_playcount"`
	MinChg          float64 `url:"min_chg" json:"min_chg"`
	MaxChg          float64 `url:"max_chg" json:"max_chg"`
	MinProbability  float64 `url:"min_probability" json:"min_probability"`
	MaxProbability  float64 `url:"max_probability" json:"max_probability"`
	MinMusicaiScore int     `url:"min_musicai_score" json:"min_musicai_score"`
	MaxMusicaiScore int     `url:"max_musicai_score" json:"max_musicai_score"`
	Skip            int     `url:"skip" json:"skip"`
	Limit           int     `url:"limit" json:"limit"`
}

// DefaultRisingTrackParams mirrors the defaults of the backend endpoint.
func DefaultRisingTrackParams() RisingTrackParams {
	return RisingTrackParams{
		LagDays:         7,
		OrderBy:         "musicai_score",
		MinGrowthRate:   0,
		MaxGrowthRate:   1e9,
		MinPlaycount:    0,
		MaxPlaycount:    1e10,
		MinChg:          0,
		MaxChg:          1e9,
		MinProbability:  0,
		MaxProbability:  1,
		MinMusicaiScore: 1,
		MaxMusicaiScore: 5,
		Skip:            0,
		Limit:           100,
	}
}

// Next returns the params for the following page.
func (p RisingTrackParams) Next() RisingTrackParams {
	p.Skip += p.Limit
	return p
}

// TopItems is a page of the provider top artists or tracks endpoint.
//
// Items are forwarded to the backend untouched.
type TopItems struct {
	Items []json.RawMessage `json:"items"`
	Total int               `json:"total,omitempty"`
	Limit int               `json:"limit,omitempty"`
}

// PlaylistRequest is the payload of the playlist generation endpoint.
type PlaylistRequest struct {
	TopArtists   []json.RawMessage `json:"top_artists"`
	TopTracks    []json.RawMessage `json:"top_tracks"`
	SpotifyToken string            `json:"spotify_token"`
}

type UserPlaylist struct {
	UserID      string            `json:"user_id,omitempty"`
	PlaylistID  string            `json:"playlist_id,omitempty"`
	PlaylistURL string            `json:"playlist_url,omitempty"`
	Tracks      []json.RawMessage `json:"tracks"`
}

// PlaylistTrack is the subset of a provider track object shown to users.
type PlaylistTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URI     string `json:"uri,omitempty"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
}

// DecodeTracks decodes each raw playlist track, skipping entries that are not track objects.
func (p UserPlaylist) DecodeTracks() []PlaylistTrack {
	tracks := make([]PlaylistTrack, 0, len(p.Tracks))
	for _, raw := range p.Tracks {
		var t PlaylistTrack
		if err := json.Unmarshal(raw, &t); err != nil || t.ID == "" {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}
