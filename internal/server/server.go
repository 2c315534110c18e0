package server

import "net/http"

// Middleware decorates a handler.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that declares the paths it owns, so a router can mount it
// without the caller repeating them.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router mounts handlers behind a shared middleware stack.
type Router interface {
	http.Handler
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	Paths() []string
}

var (
	_ Router  = (*BasicRouter)(nil)
	_ Handler = (*CallbackHandler)(nil)
)
