package service

import (
	"context"
	"sync"

	"github.com/gpchangipur/portal/internal/ports"
)

// PendingRedirect is a navigation requested by a session store and not yet delivered to the browser.
type PendingRedirect struct {
	Path           string
	ReplaceHistory bool
}

// NavigationRecorder collects redirects per browser client until the HTTP layer consumes them.
type NavigationRecorder struct {
	mu      sync.Mutex
	pending map[string][]PendingRedirect
}

// NewNavigationRecorder constructs an empty recorder.
func NewNavigationRecorder() *NavigationRecorder {
	return &NavigationRecorder{pending: make(map[string][]PendingRedirect)}
}

// For returns a ports.Navigator bound to clientID.
func (r *NavigationRecorder) For(clientID string) ports.Navigator {
	return clientNavigator{rec: r, clientID: clientID}
}

// Take removes and returns the most recent pending redirect for clientID.
// Earlier redirects are superseded and dropped.
func (r *NavigationRecorder) Take(clientID string) (PendingRedirect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.pending[clientID]
	delete(r.pending, clientID)
	if len(list) == 0 {
		return PendingRedirect{}, false
	}
	return list[len(list)-1], true
}

// Forget drops anything pending for clientID.
func (r *NavigationRecorder) Forget(clientID string) {
	r.mu.Lock()
	delete(r.pending, clientID)
	r.mu.Unlock()
}

func (r *NavigationRecorder) record(clientID string, p PendingRedirect) {
	r.mu.Lock()
	r.pending[clientID] = append(r.pending[clientID], p)
	r.mu.Unlock()
}

type clientNavigator struct {
	rec      *NavigationRecorder
	clientID string
}

func (n clientNavigator) Redirect(_ context.Context, path string, opts ports.RedirectOptions) {
	n.rec.record(n.clientID, PendingRedirect{Path: path, ReplaceHistory: opts.ReplaceHistory})
}
