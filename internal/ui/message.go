package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	err  error
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTracksLoaded MsgKind = iota
	MsgTrackSaved
	MsgPlaylistGenerated
)

// tracksLoadedMsg is the constructor for [MsgTracksLoaded]
func tracksLoadedMsg(err error) Msg {
	return Msg{kind: MsgTracksLoaded, err: err}
}

// trackSavedMsg is the constructor for [MsgTrackSaved]
func trackSavedMsg(err error) Msg {
	return Msg{kind: MsgTrackSaved, err: err}
}

// playlistGeneratedMsg is the constructor for [MsgPlaylistGenerated]
func playlistGeneratedMsg(err error) Msg {
	return Msg{kind: MsgPlaylistGenerated, err: err}
}
