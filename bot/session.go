// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"sync"
	"time"

	"github.com/opine-hq/opine/surveydef"
)

// Session is one user's in-flight questionnaire. The survey entry is
// captured when the session is created, so a registry reload mid-run
// cannot shift item indexes under the user.
type Session struct {
	UserID int64
	ChatID int64
	Lang   string

	// Entry pins the definition (and its fingerprint) for the run.
	Entry *surveydef.Entry

	// Index is the next item to ask; Answers holds the raw responses
	// so far.
	Index   int
	Answers []int

	// LastActive drives idle expiry.
	LastActive time.Time
}

// sessionTable is the per-user session map. All access goes through
// its methods; the engine never touches the map directly.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[int64]*Session)}
}

// put installs a fresh session for the user, replacing any previous
// one.
func (t *sessionTable) put(session *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[session.UserID] = session
}

// get returns the user's session and refreshes its activity time.
func (t *sessionTable) get(userID int64, now time.Time) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions[userID]
	if ok {
		session.LastActive = now
	}
	return session, ok
}

// drop removes the user's session if present.
func (t *sessionTable) drop(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, userID)
}

// sweep removes sessions idle since before the cutoff and returns how
// many were dropped.
func (t *sessionTable) sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for userID, session := range t.sessions {
		if session.LastActive.Before(cutoff) {
			delete(t.sessions, userID)
			removed++
		}
	}
	return removed
}

// len returns the number of live sessions.
func (t *sessionTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
