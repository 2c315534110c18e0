// Package ui implements an interactive rising-tracks browser using bubbletea's Elm architecture.
//
// The browser has three views:
//  1. [TrackListView] : Browse merged rising tracks, loading further pages on demand
//  2. [DetailView] : Inspect the current track and save it to the Spotify library
//  3. [PlaylistView] : Review the playlist generated from the user's top items
//
// The [Model] drives a [Session] (satisfied by the session actions) from tea.Cmd closures and
// renders whatever the session store holds afterwards. Notifications queued by an action are
// drained into the status line.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, m, s, p, q) with contextual help
// displayed via charmbracelet/bubbles/help.
package ui
