// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package surveydef

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
)

// Entry is a loaded survey plus the provenance of its definition file.
type Entry struct {
	// Survey is the parsed, validated definition.
	Survey *Survey

	// Path is the definition file the survey was loaded from.
	Path string

	// Fingerprint is the hex-encoded BLAKE3 hash of the raw file
	// bytes. Stored with results so a score can always be traced to
	// the exact definition that produced it.
	Fingerprint string
}

// Registry holds the loaded survey set. Loads build a complete new
// snapshot and swap it in atomically: readers always see a fully
// validated set, and a failed reload leaves the previous snapshot in
// place.
type Registry struct {
	// Locales every definition must cover.
	locales []string

	mu       sync.RWMutex
	snapshot map[string]*Entry
}

// NewRegistry creates an empty registry. Definitions must provide
// text for each of the given locales.
func NewRegistry(locales []string) *Registry {
	return &Registry{
		locales:  locales,
		snapshot: map[string]*Entry{},
	}
}

// LoadDir loads every *.json and *.jsonc file in dir into a new
// snapshot. If any file fails to parse or validate, the whole load
// fails with per-file issues and the current snapshot is untouched.
// An empty directory is an error: a survey bot with no surveys is a
// deployment mistake, not a valid state.
func (r *Registry) LoadDir(dir string) error {
	paths, err := definitionFiles(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no survey definitions (*.json, *.jsonc) in %s", dir)
	}

	next := make(map[string]*Entry, len(paths))
	var issues []string

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		survey, err := Parse(data)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		fileIssues := Validate(survey, r.locales)
		for _, issue := range fileIssues {
			issues = append(issues, fmt.Sprintf("%s: %s", path, issue))
		}
		if len(fileIssues) > 0 {
			continue
		}

		if existing, ok := next[survey.Key]; ok {
			issues = append(issues, fmt.Sprintf("%s: duplicate survey key %q (already defined in %s)", path, survey.Key, existing.Path))
			continue
		}

		sum := blake3.Sum256(data)
		next[survey.Key] = &Entry{
			Survey:      survey,
			Path:        path,
			Fingerprint: hex.EncodeToString(sum[:]),
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("loading %s:\n  %s", dir, strings.Join(issues, "\n  "))
	}

	r.mu.Lock()
	r.snapshot = next
	r.mu.Unlock()

	return nil
}

// Reload is LoadDir under its operational name: called from the admin
// reload command. The swap is atomic; a failed reload keeps serving
// the previous snapshot.
func (r *Registry) Reload(dir string) error {
	return r.LoadDir(dir)
}

// Get returns the entry for a survey key, or false if absent.
func (r *Registry) Get(key string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.snapshot[key]
	return entry, ok
}

// Active returns the entries whose surveys are active, sorted by
// survey key for a stable menu order.
func (r *Registry) Active() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.snapshot))
	for _, entry := range r.snapshot {
		if entry.Survey.EffectiveStatus() == StatusActive {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Survey.Key < entries[j].Survey.Key
	})
	return entries
}

// ResolveByTitle finds the active survey whose title in the given
// locale matches text exactly. Used to map menu button presses back
// to surveys: the reply keyboard sends the title as plain text.
func (r *Registry) ResolveByTitle(text, locale, fallback string) (*Entry, bool) {
	for _, entry := range r.Active() {
		if entry.Survey.Title.Get(locale, fallback) == text {
			return entry, true
		}
	}
	return nil, false
}

// Len returns the number of loaded surveys (any status).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshot)
}

// Entries returns all loaded entries sorted by survey key.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.snapshot))
	for _, entry := range r.snapshot {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Survey.Key < entries[j].Survey.Key
	})
	return entries
}

// definitionFiles lists the survey definition files in dir, sorted.
func definitionFiles(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.json", "*.jsonc"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", dir, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}
