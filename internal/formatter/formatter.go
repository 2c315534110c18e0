// package formatter renders rising tracks and generated playlists as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat accepts a format name or one of the short aliases md and txt.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

var risingHeaders = []string{
	"ID", "Name", "Artists", "Album", "Playcount", "Change", "Growth Rate", "MusicAI Score", "Score Growth", "Days Since Release",
}

// RisingTracksToCSV writes one row per track with raw numeric values.
func RisingTracksToCSV(tracks []models.RisingTrack) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(risingHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range tracks {
		record := []string{
			t.ID,
			trackName(t),
			TrackArtists(t),
			t.Album.Name,
			strconv.FormatFloat(t.Playcount, 'f', -1, 64),
			strconv.FormatFloat(t.Chg, 'f', -1, 64),
			strconv.FormatFloat(t.GrowthRate, 'f', -1, 64),
			optionalFloat(t.MusicaiScore),
			strconv.FormatFloat(t.ScoreGrowth, 'f', -1, 64),
			optionalInt(t.DaysSinceRelease),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// RisingTracksToMarkdown renders a table of tracks with abbreviated figures.
func RisingTracksToMarkdown(tracks []models.RisingTrack, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Rising Tracks"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))

	buf.WriteString("| # | Track | Artists | Album | Plays | Change | Growth | Score |\n")
	buf.WriteString("|---|-------|---------|-------|-------|--------|--------|-------|\n")
	for i, t := range tracks {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			i+1,
			escapeCell(trackName(t)),
			escapeCell(TrackArtists(t)),
			escapeCell(t.Album.Name),
			FormatPlaycount(t.Playcount),
			FormatChange(t.Chg),
			FormatGrowthRate(t.GrowthRate),
			optionalFloat(t.MusicaiScore),
		)
	}
	return buf.Bytes(), nil
}

// RisingTracksToText renders one numbered line per track followed by its figures.
func RisingTracksToText(tracks []models.RisingTrack) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Rising tracks: %d\n\n", len(tracks))
	for i, t := range tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, TrackArtists(t), trackName(t))
		fmt.Fprintf(&buf, "   Plays: %s  Change: %s  Growth: %s",
			FormatPlaycount(t.Playcount), FormatChange(t.Chg), FormatGrowthRate(t.GrowthRate))
		if t.MusicaiScore != nil {
			fmt.Fprintf(&buf, "  Score: %s", optionalFloat(t.MusicaiScore))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// PlaylistToCSV writes the decodable tracks of a generated playlist.
func PlaylistToCSV(p *models.UserPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "Artists", "Album", "URI"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range p.DecodeTracks() {
		if err := writer.Write([]string{t.ID, t.Name, PlaylistArtists(t), t.Album.Name, t.URI}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// PlaylistToMarkdown renders a generated playlist with a link when the backend returned one.
func PlaylistToMarkdown(p *models.UserPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	tracks := p.DecodeTracks()

	buf.WriteString("# Your MusicAI Playlist\n\n")
	if p.PlaylistURL != "" {
		fmt.Fprintf(&buf, "[Open in Spotify](%s)\n\n", p.PlaylistURL)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))

	buf.WriteString("## Tracks\n\n")
	for i, t := range tracks {
		albumPart := ""
		if t.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", t.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s\n", i+1, PlaylistArtists(t), t.Name, albumPart)
	}
	return buf.Bytes(), nil
}

// PlaylistToText renders a generated playlist as plain text.
func PlaylistToText(p *models.UserPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	tracks := p.DecodeTracks()

	if p.PlaylistID != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", p.PlaylistID)
	}
	if p.PlaylistURL != "" {
		fmt.Fprintf(&buf, "URL: %s\n", p.PlaylistURL)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(tracks))
	for i, t := range tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, PlaylistArtists(t), t.Name)
	}
	return buf.Bytes(), nil
}

// ExportRisingTracks renders tracks in format.
func ExportRisingTracks(format Format, tracks []models.RisingTrack) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(tracks, true)
	case FormatCSV:
		return RisingTracksToCSV(tracks)
	case FormatMarkdown:
		return RisingTracksToMarkdown(tracks, "")
	case FormatText:
		return RisingTracksToText(tracks)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
}

// ExportPlaylist renders a generated playlist in format.
func ExportPlaylist(format Format, p *models.UserPlaylist) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(p, true)
	case FormatCSV:
		return PlaylistToCSV(p)
	case FormatMarkdown:
		return PlaylistToMarkdown(p)
	case FormatText:
		return PlaylistToText(p)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
}

// WriteExport writes data to path, creating parent directories.
func WriteExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// TrackArtists joins the artist names of a rising track with ", ".
func TrackArtists(t models.RisingTrack) string {
	if t.ArtistsStr != "" {
		return t.ArtistsStr
	}
	return t.ArtistNames()
}

// PlaylistArtists joins the artist names of a playlist track with ", ".
func PlaylistArtists(t models.PlaylistTrack) string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// TitleCase lowercases s and upper-cases the first letter of every space separated word.
func TitleCase(s string) string {
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

func trackName(t models.RisingTrack) string {
	if t.Name != "" {
		return t.Name
	}
	return t.Track.Name
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// FormatPlaycount abbreviates with two decimals: 1234567 is "1.23m".
func FormatPlaycount(v float64) string {
	return abbreviate(v, 2, 0)
}

// FormatGrowthRate renders a ratio as an abbreviated percentage: 0.1234 is "12.34%".
func FormatGrowthRate(v float64) string {
	return abbreviate(v*100, 2, 0) + "%"
}

// FormatChange abbreviates with one decimal and an optional second: 1.25 is "1.25", 1.2 is "1.2".
func FormatChange(v float64) string {
	return abbreviate(v, 1, 1)
}

var suffixes = []string{"", "k", "m", "b", "t"}

// abbreviate scales v by powers of a thousand up to trillions and prints it with fixed
// decimals followed by up to optional trimmable ones.
func abbreviate(v float64, fixed, optional int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	tier := 0
	for tier < len(suffixes)-1 && v >= 1000 {
		v /= 1000
		tier++
	}

	s := strconv.FormatFloat(v, 'f', fixed+optional, 64)
	// rounding may carry into the next tier, 999999 would print as 1000.00k
	if tier > 0 && tier < len(suffixes)-1 {
		if r, err := strconv.ParseFloat(s, 64); err == nil && r >= 1000 {
			v /= 1000
			tier++
			s = strconv.FormatFloat(v, 'f', fixed+optional, 64)
		}
	}

	if optional > 0 {
		trimmed := strings.TrimRight(s, "0")
		if min := len(s) - optional; len(trimmed) < min {
			trimmed = s[:min]
		}
		s = strings.TrimSuffix(trimmed, ".")
	}

	if r, err := strconv.ParseFloat(s, 64); err == nil && r == 0 {
		sign = ""
	}
	return sign + s + suffixes[tier]
}
