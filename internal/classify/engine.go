// Package classify assigns every loaded element a leaf code in the
// classification table. Assignment runs an ordered rule cascade (manual
// override, explicit classification data in the property bag, contextual
// heuristics, type default) and records provenance and confidence for each
// verdict. Manual overrides are keyed by stable element ids so they survive
// reloads that reshuffle session model indices.
package classify

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/buildplane/takeoff-cli/internal/model"
	"github.com/buildplane/takeoff-cli/internal/taxonomy"
)

// OverrideStore persists manual overrides between sessions. Implementations
// must treat the map as the complete override set, not a delta.
type OverrideStore interface {
	LoadOverrides(ctx context.Context) (map[model.ElementID]string, error)
	SaveOverrides(ctx context.Context, overrides map[model.ElementID]string) error
}

// classificationIndicators marks property keys that may carry explicit
// classification data. Matching is substring-based over the whole key
// because exporters put these under arbitrary set names.
var classificationIndicators = []string{
	"classification",
	"assembly code", "assemblycode",
	"omniclass",
	"uniclass",
	"uniformat",
	"masterformat",
	"keynote",
	"category code", "categorycode",
}

// Summary counts classification verdicts per source after a full rebuild.
type Summary struct {
	Total        int `json:"total"`
	Manual       int `json:"manual"`
	Explicit     int `json:"explicit"`
	Heuristic    int `json:"heuristic"`
	TypeDefault  int `json:"type_default"`
	Unclassified int `json:"unclassified"`
}

// Engine owns the classification state for one load session. All mutation
// goes through its methods; collaborators may read the classification map
// directly but must never write it.
type Engine struct {
	taxo     *taxonomy.Table
	store    OverrideStore
	resolver *model.Resolver

	elements        map[model.SessionRef]model.ElementRecord
	order           []model.SessionRef
	classifications map[model.SessionRef]model.ClassificationRecord
	overrides       map[model.ElementID]string
}

// NewEngine creates an Engine over one session. store may be nil, in which
// case overrides live only in memory.
func NewEngine(taxo *taxonomy.Table, session *model.Session, store OverrideStore) *Engine {
	e := &Engine{
		taxo:            taxo,
		store:           store,
		resolver:        session.Resolver(),
		elements:        make(map[model.SessionRef]model.ElementRecord, len(session.Elements)),
		order:           make([]model.SessionRef, 0, len(session.Elements)),
		classifications: make(map[model.SessionRef]model.ClassificationRecord, len(session.Elements)),
		overrides:       make(map[model.ElementID]string),
	}
	for _, el := range session.Elements {
		e.elements[el.Ref] = el
		e.order = append(e.order, el.Ref)
	}
	return e
}

// LoadOverrides restores the persisted override set. Overrides referencing
// files absent from the current session are kept but stay dormant until
// their file is loaded again.
func (e *Engine) LoadOverrides(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	ov, err := e.store.LoadOverrides(ctx)
	if err != nil {
		return eris.Wrap(err, "classify: load overrides")
	}
	if ov == nil {
		ov = make(map[model.ElementID]string)
	}
	e.overrides = ov
	return nil
}

// ClassifyAll rebuilds every classification record from scratch and returns
// per-source counts. Running it twice without intervening mutation yields
// identical records.
func (e *Engine) ClassifyAll() Summary {
	var sum Summary
	sum.Total = len(e.order)

	for _, ref := range e.order {
		el := e.elements[ref]

		if code, ok := e.overrides[el.StableID()]; ok {
			e.classifications[ref] = model.ClassificationRecord{
				Code:       code,
				Source:     model.SourceManual,
				Confidence: model.ConfidenceManual,
			}
			sum.Manual++
			continue
		}

		rec := e.derive(el)
		e.classifications[ref] = rec
		switch rec.Source {
		case model.SourceExplicit:
			sum.Explicit++
		case model.SourceHeuristic:
			sum.Heuristic++
		case model.SourceTypeDefault:
			sum.TypeDefault++
		default:
			sum.Unclassified++
		}
	}

	zap.L().Info("classify: full rebuild complete",
		zap.Int("total", sum.Total),
		zap.Int("manual", sum.Manual),
		zap.Int("explicit", sum.Explicit),
		zap.Int("heuristic", sum.Heuristic),
		zap.Int("type_default", sum.TypeDefault),
		zap.Int("unclassified", sum.Unclassified),
	)
	return sum
}

// derive runs cascade steps 2-5 (everything below manual override) for one
// element.
func (e *Engine) derive(el model.ElementRecord) model.ClassificationRecord {
	if code, ok := e.explicitCode(el); ok {
		return model.ClassificationRecord{
			Code:       code,
			Source:     model.SourceExplicit,
			Confidence: model.ConfidenceExplicit,
		}
	}
	if code := heuristicCode(el); code != "" {
		return model.ClassificationRecord{
			Code:       code,
			Source:     model.SourceHeuristic,
			Confidence: model.ConfidenceHeuristic,
		}
	}
	if code := typeDefault(el.EntityType); code != "" {
		return model.ClassificationRecord{
			Code:       code,
			Source:     model.SourceTypeDefault,
			Confidence: model.ConfidenceTypeDefault,
		}
	}
	return model.Unclassified()
}

// explicitCode scans the property bag for classification-indicator keys
// holding a known leaf code. Keys are visited in sorted order so repeated
// runs over the same bag are deterministic. Malformed values fall through
// silently; a typo in source data is indistinguishable from absence.
func (e *Engine) explicitCode(el model.ElementRecord) (string, bool) {
	var keys []string
	for k := range el.Properties {
		lower := strings.ToLower(k)
		for _, ind := range classificationIndicators {
			if strings.Contains(lower, ind) {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := el.Properties[k]
		if v.Kind != model.KindString {
			continue
		}
		if code, ok := e.taxo.Normalize(v.Str); ok {
			return code, true
		}
		zap.L().Debug("classify: unusable classification value",
			zap.String("ref", el.Ref.String()),
			zap.String("key", k),
			zap.String("value", v.Str),
		)
	}
	return "", false
}

// Classification returns the record for one element.
func (e *Engine) Classification(ref model.SessionRef) (model.ClassificationRecord, bool) {
	rec, ok := e.classifications[ref]
	return rec, ok
}

// Classifications exposes the full classification map for read access.
// Callers must not mutate it; all writes go through SetManual, BulkAssign,
// and ImportOverrides.
func (e *Engine) Classifications() map[model.SessionRef]model.ClassificationRecord {
	return e.classifications
}

// Element returns the element record behind a ref.
func (e *Engine) Element(ref model.SessionRef) (model.ElementRecord, bool) {
	el, ok := e.elements[ref]
	return el, ok
}

// SetManual forces an element's classification to the given leaf code, or
// clears the override when code is empty and re-derives the classification
// through the same cascade a full rebuild would run. It reports whether the
// stored record changed. Unknown codes are rejected.
func (e *Engine) SetManual(ctx context.Context, ref model.SessionRef, code string) (bool, error) {
	el, ok := e.elements[ref]
	if !ok {
		return false, eris.Errorf("classify: unknown element %s", ref)
	}

	prev := e.classifications[ref]

	if code == "" {
		if _, had := e.overrides[el.StableID()]; had {
			delete(e.overrides, el.StableID())
			e.persist(ctx)
		}
		rec := e.derive(el)
		e.classifications[ref] = rec
		return rec != prev, nil
	}

	if !e.taxo.IsLeaf(code) {
		return false, eris.Errorf("classify: unknown leaf code %q", code)
	}

	e.overrides[el.StableID()] = code
	e.classifications[ref] = model.ClassificationRecord{
		Code:       code,
		Source:     model.SourceManual,
		Confidence: model.ConfidenceManual,
	}
	e.persist(ctx)
	return e.classifications[ref] != prev, nil
}

// BulkAssign forces every element of the given entity type to the given
// leaf code with a single persistence write at the end.
func (e *Engine) BulkAssign(ctx context.Context, entityType, code string) (int, error) {
	if !e.taxo.IsLeaf(code) {
		return 0, eris.Errorf("classify: unknown leaf code %q", code)
	}

	n := 0
	for _, ref := range e.order {
		el := e.elements[ref]
		if !strings.EqualFold(el.EntityType, entityType) {
			continue
		}
		e.overrides[el.StableID()] = code
		e.classifications[ref] = model.ClassificationRecord{
			Code:       code,
			Source:     model.SourceManual,
			Confidence: model.ConfidenceManual,
		}
		n++
	}
	if n > 0 {
		e.persist(ctx)
	}

	zap.L().Info("classify: bulk assign",
		zap.String("entity_type", entityType),
		zap.String("code", code),
		zap.Int("assigned", n),
	)
	return n, nil
}

// Overrides returns a copy of the current override set.
func (e *Engine) Overrides() map[model.ElementID]string {
	out := make(map[model.ElementID]string, len(e.overrides))
	for id, code := range e.overrides {
		out[id] = code
	}
	return out
}

// persist writes the override set through the store. Persistence failures
// are surfaced as log warnings only; the in-memory state stays
// authoritative.
func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveOverrides(ctx, e.overrides); err != nil {
		zap.L().Warn("classify: override persistence failed, in-memory state unaffected",
			zap.Error(err),
		)
	}
}
