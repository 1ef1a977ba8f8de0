// Package scripts tracks the scripts the remote runtime has parsed.
package scripts

import (
	"strings"
	"sync"

	"github.com/dshills/jsinspect/internal/integration/inspector/sourcemap"
)

// Record is one parsed script.
type Record struct {
	ID        string
	URL       string
	SourceMap *sourcemap.Ref
}

// Parsed is the metadata of a Debugger.scriptParsed notification.
type Parsed struct {
	ID              string
	URL             string
	IsContentScript bool
	SourceMapURL    string
}

// MapSource produces the source-map ref for a newly parsed script.
type MapSource interface {
	LazyFrom(sourceMapURL string) *sourcemap.Ref
}

// Registry holds at most one Record per URL. A record is also indexed by its id.
type Registry struct {
	maps MapSource

	mu    sync.RWMutex
	byURL map[string]*Record
	byID  map[string]*Record
	order []*Record // parse order, oldest first
}

// NewRegistry creates an empty registry that takes source-map refs from maps.
func NewRegistry(maps MapSource) *Registry {
	return &Registry{
		maps:  maps,
		byURL: make(map[string]*Record),
		byID:  make(map[string]*Record),
	}
}

// OnScriptParsed records a parsed script. Content scripts and scripts without
// a URL are dropped. A script with a URL already present replaces the old record.
// It returns the new record, or nil if the event was dropped.
func (r *Registry) OnScriptParsed(meta Parsed) *Record {
	if meta.IsContentScript || meta.URL == "" {
		return nil
	}

	ref := sourcemap.Absent()
	if r.maps != nil && meta.SourceMapURL != "" {
		ref = r.maps.LazyFrom(sourcemap.ResolveURL(meta.URL, meta.SourceMapURL))
	}

	rec := &Record{
		ID:        meta.ID,
		URL:       meta.URL,
		SourceMap: ref,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byURL[meta.URL]; ok {
		r.removeLocked(old)
	}
	r.byURL[rec.URL] = rec
	r.byID[rec.ID] = rec
	r.order = append(r.order, rec)

	return rec
}

// Remove evicts rec. It reports whether rec was present.
func (r *Registry) Remove(rec *Record) bool {
	if rec == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byURL[rec.URL] != rec {
		return false
	}
	r.removeLocked(rec)
	return true
}

func (r *Registry) removeLocked(rec *Record) {
	delete(r.byURL, rec.URL)
	if r.byID[rec.ID] == rec {
		delete(r.byID, rec.ID)
	}
	for i, o := range r.order {
		if o == rec {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// FindByID returns the record with the given script id.
func (r *Registry) FindByID(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	return rec, ok
}

// FindByFilename returns a record whose URL ends with name. When several
// records match, the most recently parsed one wins.
func (r *Registry) FindByFilename(name string) (*Record, bool) {
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		if strings.HasSuffix(r.order[i].URL, name) {
			return r.order[i], true
		}
	}
	return nil, false
}

// Records returns the records in parse order.
func (r *Registry) Records() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byURL)
}

// Clear removes every record.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byURL = make(map[string]*Record)
	r.byID = make(map[string]*Record)
	r.order = nil
}
