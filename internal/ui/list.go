package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/musicai/internal/formatter"
	"github.com/desertthunder/musicai/internal/models"
)

var (
	_ list.Item = risingTrackItem{}
	_ list.Item = playlistTrackItem{}
)

// risingTrackItem wraps [models.RisingTrack] to implement [list.Item].
type risingTrackItem struct {
	track models.RisingTrack
}

func (i risingTrackItem) FilterValue() string { return i.track.Name + " " + i.track.ArtistsStr }
func (i risingTrackItem) Title() string       { return i.track.Name }
func (i risingTrackItem) Description() string {
	desc := fmt.Sprintf("%s • %s plays • %s growth",
		formatter.TrackArtists(i.track),
		formatter.FormatPlaycount(i.track.Playcount),
		formatter.FormatGrowthRate(i.track.GrowthRate),
	)
	if i.track.MusicaiScore != nil {
		desc = fmt.Sprintf("%s • score %.0f", desc, *i.track.MusicaiScore)
	}
	return desc
}

// playlistTrackItem wraps [models.PlaylistTrack] to implement [list.Item].
type playlistTrackItem struct {
	track models.PlaylistTrack
}

func (i playlistTrackItem) FilterValue() string { return i.track.Name }
func (i playlistTrackItem) Title() string       { return i.track.Name }
func (i playlistTrackItem) Description() string {
	desc := formatter.PlaylistArtists(i.track)
	if i.track.Album.Name != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album.Name)
	}
	return desc
}

func risingItems(tracks []models.RisingTrack) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = risingTrackItem{track: t}
	}
	return items
}

func playlistItems(tracks []models.PlaylistTrack) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = playlistTrackItem{track: t}
	}
	return items
}
