package session

import "sync"

// Paths the session actions navigate between.
const (
	PathRoot  = "/"
	PathLogin = "/login"
	PathMain  = "/main"
)

// Navigator holds the current route.
type Navigator interface {
	Path() string
	Push(path string)
}

// Route is an in-memory [Navigator] that records every push.
type Route struct {
	mu      sync.Mutex
	history []string
}

func NewRoute(start string) *Route {
	if start == "" {
		start = PathRoot
	}
	return &Route{history: []string{start}}
}

func (r *Route) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1]
}

func (r *Route) Push(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, path)
}

// History returns every path visited, oldest first.
func (r *Route) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// routeLoggedIn moves to the authenticated area when the user is on the login or root page.
func routeLoggedIn(n Navigator) {
	if p := n.Path(); p == PathLogin || p == PathRoot {
		n.Push(PathMain)
	}
}

func routeLogOut(n Navigator) {
	if n.Path() != PathLogin {
		n.Push(PathLogin)
	}
}
