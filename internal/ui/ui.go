package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musicai/internal/formatter"
	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/session"
	"github.com/desertthunder/musicai/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TrackListView ViewState = iota
	DetailView
	PlaylistView
)

// Session is the subset of [session.Actions] the browser drives.
type Session interface {
	Store() *session.Store
	GetRisingTracks(ctx context.Context, params models.RisingTrackParams) error
	SaveTrack(ctx context.Context, trackID string) error
	GetUserPlaylist(ctx context.Context) error
	SpotifySession() session.SpotifyStatus
}

// errNoSpotify keeps provider actions from starting a browser redirect under the TUI.
var errNoSpotify = fmt.Errorf("%w: run 'musicai spotify login' first", shared.ErrNotAuthenticated)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	session   Session
	params    models.RisingTrackParams
	width     int
	height    int
	trackList list.Model
	playlist  list.Model
	loading   bool
	status    string
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a browser that starts at params.
func NewModel(ctx context.Context, s Session, params models.RisingTrackParams) *Model {
	m := &Model{
		ctx:     ctx,
		view:    TrackListView,
		session: s,
		params:  params,
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.trackList = newList("Rising Tracks", nil)
	m.playlist = newList("Generated Playlist", nil)
	return m
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

// Init loads the first page unless the store already holds tracks.
func (m *Model) Init() tea.Cmd {
	if tracks := m.session.Store().RisingTracks(); len(tracks) > 0 {
		m.trackList.SetItems(risingItems(tracks))
		return nil
	}
	return m.loadTracks(m.params)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		m.playlist.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.trackList.FilterState() == list.Filtering {
			break
		}
		switch m.view {
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case PlaylistView:
			return m.handlePlaylistKeys(msg)
		}

	case Msg:
		return m.handleResult(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleResult(msg Msg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.flushNotifications()
	if msg.err != nil {
		m.status = styles.err.Render(fmt.Sprintf("Error: %v", msg.err))
		if errors.Is(msg.err, shared.ErrNotAuthenticated) && msg.kind == MsgTracksLoaded {
			m.err = msg.err
		}
		return m, nil
	}

	switch msg.kind {
	case MsgTracksLoaded:
		index := m.trackList.Index()
		tracks := m.session.Store().RisingTracks()
		m.trackList.SetItems(risingItems(tracks))
		m.trackList.Select(index)
		if m.status == "" {
			m.status = styles.help.Render(fmt.Sprintf("%d tracks loaded", len(tracks)))
		}
	case MsgPlaylistGenerated:
		if p := m.session.Store().UserPlaylist(); p != nil {
			m.playlist.SetItems(playlistItems(p.DecodeTracks()))
			m.view = PlaylistView
		}
	}
	return m, nil
}

// flushNotifications shows the newest queued notification and empties the queue.
func (m *Model) flushNotifications() {
	store := m.session.Store()
	m.status = ""
	for _, n := range store.Notifications() {
		m.status = styles.Notification(n)
		store.RemoveNotification(n.ID)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	var body string
	switch m.view {
	case TrackListView:
		body = m.renderTrackList()
	case DetailView:
		body = m.renderDetail()
	case PlaylistView:
		body = m.renderPlaylist()
	}

	if m.loading {
		body += "\n" + styles.help.Render("Loading...")
	} else if m.status != "" {
		body += "\n" + m.status
	}
	return body
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.trackList.SelectedItem().(risingTrackItem); ok {
			track := item.track
			m.session.Store().SetCurrentTrack(&track)
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.more):
		if m.loading {
			return m, nil
		}
		m.params = m.params.Next()
		return m, m.loadTracks(m.params)
	case key.Matches(msg, m.keys.playlist):
		return m, m.generatePlaylist()
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.save):
		if t := m.session.Store().CurrentTrack(); t != nil {
			return m, m.saveTrack(t.Track.ID)
		}
	}
	return m, nil
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = TrackListView
		return m, nil
	}

	var cmd tea.Cmd
	m.playlist, cmd = m.playlist.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	case PlaylistView:
		m.playlist, cmd = m.playlist.Update(msg)
	}
	return m, cmd
}

func (m *Model) spotifyReady() bool {
	s := m.session.SpotifySession()
	return s.HasToken || s.HasRefreshToken
}

func (m *Model) loadTracks(params models.RisingTrackParams) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		return tracksLoadedMsg(m.session.GetRisingTracks(m.ctx, params))
	}
}

func (m *Model) saveTrack(id string) tea.Cmd {
	if !m.spotifyReady() {
		return func() tea.Msg { return trackSavedMsg(errNoSpotify) }
	}
	m.loading = true
	return func() tea.Msg {
		return trackSavedMsg(m.session.SaveTrack(m.ctx, id))
	}
}

func (m *Model) generatePlaylist() tea.Cmd {
	if !m.spotifyReady() {
		return func() tea.Msg { return playlistGeneratedMsg(errNoSpotify) }
	}
	m.loading = true
	return func() tea.Msg {
		return playlistGeneratedMsg(m.session.GetUserPlaylist(m.ctx))
	}
}

func (m *Model) renderTrackList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.more, m.keys.playlist, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	t := m.session.Store().CurrentTrack()
	if t == nil {
		return styles.warn.Render("No track selected")
	}

	var b strings.Builder
	b.WriteString(styles.Title(t.Name))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Artists: %s\n", formatter.TrackArtists(*t))
	if t.Album.Name != "" {
		fmt.Fprintf(&b, "Album: %s", t.Album.Name)
		if t.Album.ReleaseDate != "" {
			fmt.Fprintf(&b, " (%s)", t.Album.ReleaseDate)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Plays: %s\n", formatter.FormatPlaycount(t.Playcount))
	fmt.Fprintf(&b, "Change: %s over %d days\n", formatter.FormatChange(t.Chg), t.PeriodDays)
	fmt.Fprintf(&b, "Growth: %s\n", formatter.FormatGrowthRate(t.GrowthRate))
	if t.MusicaiScore != nil {
		fmt.Fprintf(&b, "MusicAI score: %.0f (score growth %s)\n", *t.MusicaiScore, formatter.FormatChange(t.ScoreGrowth))
	}
	if t.Probability != nil {
		fmt.Fprintf(&b, "Probability: %s\n", formatter.FormatGrowthRate(*t.Probability))
	}
	if t.DaysSinceRelease != nil {
		fmt.Fprintf(&b, "Released %d days ago\n", *t.DaysSinceRelease)
	}
	if t.Player != nil && t.Player.PreviewURL != "" {
		fmt.Fprintf(&b, "Preview: %s\n", t.Player.PreviewURL)
	}

	helpKeys := []key.Binding{m.keys.save, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s", b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderPlaylist() string {
	header := ""
	if p := m.session.Store().UserPlaylist(); p != nil && p.PlaylistURL != "" {
		header = styles.ok.Render(p.PlaylistURL) + "\n\n"
	}
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s%s\n\n%s", header, m.playlist.View(), m.help.ShortHelpView(helpKeys))
}
