// Package session keeps the backend and Spotify sessions consistent with persisted storage.
//
// # State
//
// [Store] owns every piece of in-memory session state behind a mutex. Callers change it only
// through its mutation methods and read it through accessors that return copies.
//
// # Actions
//
// [Actions] sequences client calls, storage writes and store mutations:
//   - Backend session: [Actions.LogIn], [Actions.LogOut], [Actions.CheckLoggedIn]
//   - Spotify session: [Actions.LogInSpotify], [Actions.ReceiveSpotifyAuthCode],
//     [Actions.RefreshSpotifyToken], [Actions.CheckLoggedInSpotify]
//   - Data: [Actions.GetRisingTracks], [Actions.GetUserPlaylist]
//
// Every action that calls an authenticated backend endpoint routes failures through
// [Actions.CheckApiError], which logs the user out on a 401.
//
// # Expiry
//
// A Spotify token is treated as expired when it has 120 seconds or less left, see [TokenExpired].
// The check is pull-based: [Actions.CheckLoggedInSpotify] runs it before any call that needs
// a provider token.
package session
