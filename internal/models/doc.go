// Package models defines the data transfer objects exchanged with the musicai backend and the Spotify Web API.
//
// The package contains three groups of types:
//
// 1. Session records
//   - [AccessToken] : backend login response
//   - [SpotifyToken] : provider OAuth token with a client computed expiry
//   - [Notification] : user facing message queued by session actions
//
// 2. User records
//   - [UserProfile], [UserProfileUpdate], [UserProfileCreate] : backend user resources
//   - [SpotifyProfile] : projection of the provider /me response
//
// 3. Domain data
//   - [RisingTrack] and [RisingTrackParams] : track analytics and their query filters
//   - [TopItems], [PlaylistRequest], [UserPlaylist] : playlist generation payloads
//
// Types are replaced wholesale from server responses. The only derived values are the
// presentation fields of [RisingTrack], filled in by [RisingTrack.Derive].
package models
