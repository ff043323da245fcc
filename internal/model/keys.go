package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ElementID identifies an element by its originating file and native IFC
// entity id. It is stable across load sessions as long as the file keeps
// its name, and is the only identifier safe to persist.
type ElementID struct {
	File     string `json:"file"`
	NativeID int64  `json:"native_id"`
}

/// String renders the persisted form "<filename>:<nativeID>".
func (id ElementID) String() string {
	return fmt.Sprintf("%s:%d", id.File, id.NativeID)
}

// ParseElementID parses the persisted "<filename>:<nativeID>" form. The
// native id is the suffix after the last colon so filenames containing
// colons round-trip correctly.
func ParseElementID(s string) (ElementID, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return ElementID{}, eris.Errorf("model: malformed element id %q", s)
	}
	native, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return ElementID{}, eris.Wrapf(err, "model: parse native id in %q", s)
	}
	return ElementID{File: s[:i], NativeID: native}, nil
}

// SessionRef identifies an element within one load session: the session-local
// model index plus the native IFC entity id. Model indices are reassigned on
// every load, so a SessionRef must never be persisted.
type SessionRef struct {
	Model    int   `json:"model"`
	NativeID int64 `json:"native_id"`
}

// String renders the in-session form "<modelIndex>:<nativeID>".
func (r SessionRef) String() string {
	return fmt.Sprintf("%d:%d", r.Model, r.NativeID)
}

// ParseSessionRef parses the "<modelIndex>:<nativeID>" form.
func ParseSessionRef(s string) (SessionRef, error) {
	idx, native, ok := strings.Cut(s, ":")
	if !ok {
		return SessionRef{}, eris.Errorf("model: malformed session ref %q", s)
	}
	m, err := strconv.Atoi(idx)
	if err != nil {
		return SessionRef{}, eris.Wrapf(err, "model: parse model index in %q", s)
	}
	n, err := strconv.ParseInt(native, 10, 64)
	if err != nil {
		return SessionRef{}, eris.Wrapf(err, "model: parse native id in %q", s)
	}
	return SessionRef{Model: m, NativeID: n}, nil
}

// Resolver translates between stable ElementIDs and session-local
// SessionRefs using the manifest of the current load session.
type Resolver struct {
	byFile  map[string]int
	byIndex map[int]string
}

// NewResolver builds a Resolver from the session's model manifest.
func NewResolver(models []ModelInfo) *Resolver {
	r := &Resolver{
		byFile:  make(map[string]int, len(models)),
		byIndex: make(map[int]string, len(models)),
	}
	for _, m := range models {
		r.byFile[m.Filename] = m.Index
		r.byIndex[m.Index] = m.Filename
	}
	return r
}

// ToSession resolves a stable id to this session's ref. The second return is
// false when the id's file is not part of the current session.
func (r *Resolver) ToSession(id ElementID) (SessionRef, bool) {
	idx, ok := r.byFile[id.File]
	if !ok {
		return SessionRef{}, false
	}
	return SessionRef{Model: idx, NativeID: id.NativeID}, true
}

// ToStable resolves a session ref to its stable id. The second return is
// false when the ref's model index is unknown to the manifest.
func (r *Resolver) ToStable(ref SessionRef) (ElementID, bool) {
	file, ok := r.byIndex[ref.Model]
	if !ok {
		return ElementID{}, false
	}
	return ElementID{File: file, NativeID: ref.NativeID}, true
}
