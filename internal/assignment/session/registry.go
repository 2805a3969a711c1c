package session

import (
	"context"
	"sync"
)

type Opener interface {
	Open(ctx context.Context, organizationID, jobID string) (*Session, error)
}

// Registry tracks live sessions per viewer. Opening a session for a different
// job closes the viewer's earlier sessions; repeated requests for the same job
// run side by side until each is released.
type Registry struct {
	opener Opener

	mu       sync.Mutex
	sessions map[string][]*Session
}

func NewRegistry(opener Opener) *Registry {
	return &Registry{
		opener:   opener,
		sessions: make(map[string][]*Session),
	}
}

func (r *Registry) Open(ctx context.Context, viewerKey, organizationID, jobID string) (*Session, error) {
	r.closeOtherJobs(viewerKey, jobID)

	sess, err := r.opener.Open(ctx, organizationID, jobID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[viewerKey] = append(r.sessions[viewerKey], sess)
	r.mu.Unlock()

	// A concurrent Open for another job may have registered in the meantime.
	r.closeOtherJobs(viewerKey, jobID)
	return sess, nil
}

func (r *Registry) closeOtherJobs(viewerKey, jobID string) {
	var stale []*Session

	r.mu.Lock()
	kept := r.sessions[viewerKey][:0]
	for _, s := range r.sessions[viewerKey] {
		if s.JobID() == jobID {
			kept = append(kept, s)
		} else {
			stale = append(stale, s)
		}
	}
	r.store(viewerKey, kept)
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
}

// Release closes sess and forgets it.
func (r *Registry) Release(viewerKey string, sess *Session) {
	r.mu.Lock()
	kept := r.sessions[viewerKey][:0]
	for _, s := range r.sessions[viewerKey] {
		if s != sess {
			kept = append(kept, s)
		}
	}
	r.store(viewerKey, kept)
	r.mu.Unlock()

	sess.Close()
}

// store must be called with r.mu held.
func (r *Registry) store(viewerKey string, list []*Session) {
	if len(list) == 0 {
		delete(r.sessions, viewerKey)
		return
	}
	r.sessions[viewerKey] = list
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := r.sessions
	r.sessions = make(map[string][]*Session)
	r.mu.Unlock()

	for _, list := range open {
		for _, sess := range list {
			sess.Close()
		}
	}
}

// Len reports the number of live sessions across all viewers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.sessions {
		n += len(list)
	}
	return n
}
