// Package services implements the HTTP clients used by the session layer.
//
// # Backend
//
// [APIService] wraps the musicai REST backend under /api/v1. Authenticated calls take the
// backend token explicitly; the client never stores it.
//
// # Spotify
//
// [SpotifyService] builds the authorization URL and performs the authorization-code and
// refresh grants with [oauth2.Config], sending the client credentials as HTTP Basic auth.
// Profile and top-item requests use the bearer token passed by the caller.
//
// # Error Handling
//
// Clients never retry or refresh. Non-2xx responses become a [*StatusError]:
//   - [shared.ErrNotAuthenticated] : status 401
//   - [shared.ErrAPIRequest] : any other non-2xx status
//
// Token endpoint failures surface as [*oauth2.RetrieveError]. [StatusCode] reads the status
// from either kind so callers can route 401s to a single handler.
//
// [SpotifyService.Me] is the exception: it reports failure as a nil profile.
package services
