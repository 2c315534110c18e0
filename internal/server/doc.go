// Package server provides the HTTP routing and the one-shot redirect listener used by the
// Spotify authorization-code flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handler
//
// [CallbackHandler] receives the provider redirect. It validates the state parameter (CSRF protection)
// and delivers the authorization code through a channel. The code exchange itself belongs to the session
// actions, so the handler never talks to the provider.
//
// It only processes one callback to prevent replay attacks.
//
// # Callback Server
//
// [CallbackServer] runs a temporary listener on the configured redirect address, waits for the
// callback or a timeout, and shuts down.
package server
