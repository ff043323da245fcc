package classify

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/buildplane/takeoff-cli/internal/model"
)

// overrideFormatVersion is stamped on exported override files.
const overrideFormatVersion = 1

// overrideFile is the interchange format for manual overrides: a flat map
// from stable element id to leaf code, wrapped with a version field.
type overrideFile struct {
	Version   int               `json:"version"`
	Overrides map[string]string `json:"overrides"`
}

// ExportOverrides serializes the current override set.
func (e *Engine) ExportOverrides() ([]byte, error) {
	out := overrideFile{
		Version:   overrideFormatVersion,
		Overrides: make(map[string]string, len(e.overrides)),
	}
	for id, code := range e.overrides {
		out.Overrides[id.String()] = code
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "classify: marshal overrides")
	}
	return data, nil
}

// ImportOverrides merges an exported override set into the engine: imported
// entries overwrite existing stable-key entries, the merged set is persisted
// once, and every classification is rebuilt. Entries with malformed keys or
// unknown codes are skipped. Returns the number of entries merged.
func (e *Engine) ImportOverrides(ctx context.Context, data []byte) (int, error) {
	var f overrideFile
	if err := json.Unmarshal(data, &f); err != nil || f.Overrides == nil {
		// Legacy exports are the bare flat map without the version wrapper.
		var flat map[string]string
		if err := json.Unmarshal(data, &flat); err != nil {
			return 0, eris.Wrap(err, "classify: parse overrides")
		}
		f.Overrides = flat
	}

	merged := 0
	for key, code := range f.Overrides {
		id, err := model.ParseElementID(key)
		if err != nil {
			zap.L().Warn("classify: skipping malformed override key",
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		if !e.taxo.IsLeaf(code) {
			zap.L().Warn("classify: skipping override with unknown code",
				zap.String("key", key),
				zap.String("code", code),
			)
			continue
		}
		e.overrides[id] = code
		merged++
	}

	if merged > 0 {
		e.persist(ctx)
	}
	e.ClassifyAll()

	zap.L().Info("classify: imported overrides",
		zap.Int("merged", merged),
		zap.Int("supplied", len(f.Overrides)),
	)
	return merged, nil
}
