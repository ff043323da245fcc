// Package ingest loads flattened IFC element dumps into a session. A dump
// is the JSON a geometry-side exporter writes per IFC file: the model
// manifest entry, its storeys with elevations, and one record per element
// with the raw property bag. Geometry itself never reaches this tool.
package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/buildplane/takeoff-cli/internal/model"
)

type dumpStorey struct {
	Name      string  `json:"name"`
	Elevation float64 `json:"elevation"`
}

type dumpElement struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Storey     string         `json:"storey"`
	Properties map[string]any `json:"properties"`
}

type dumpFile struct {
	Filename string        `json:"filename"`
	Schema   string        `json:"schema"`
	Storeys  []dumpStorey  `json:"storeys"`
	Elements []dumpElement `json:"elements"`
}

// LoadFiles parses the given dump files concurrently and assembles one
// session. Model indices follow argument order; reloading the same files in
// a different order reassigns them. maxConcurrent caps parallel file parses
// (values below 1 mean unlimited).
func LoadFiles(ctx context.Context, paths []string, maxConcurrent int) (*model.Session, error) {
	if len(paths) == 0 {
		return nil, eris.New("ingest: no input files")
	}

	dumps := make([]*dumpFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := parseFile(path)
			if err != nil {
				return err
			}
			dumps[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	session := &model.Session{
		ID:       uuid.New().String(),
		LoadedAt: time.Now().UTC(),
		Storeys:  make(map[string]float64),
	}

	for i, d := range dumps {
		elements := convertElements(i, d)
		session.Models = append(session.Models, model.ModelInfo{
			Index:        i,
			Filename:     d.Filename,
			Schema:       d.Schema,
			ElementCount: len(elements),
		})
		for _, s := range d.Storeys {
			// First file to name a storey wins; federated disciplines
			// typically agree on shared level names.
			if _, ok := session.Storeys[s.Name]; !ok {
				session.Storeys[s.Name] = s.Elevation
			}
		}
		session.Elements = append(session.Elements, elements...)
	}

	zap.L().Info("ingest: session loaded",
		zap.String("session", session.ID),
		zap.Int("models", len(session.Models)),
		zap.Int("elements", len(session.Elements)),
	)
	return session, nil
}

func parseFile(path string) (*dumpFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	var d dumpFile
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}
	if d.Filename == "" {
		d.Filename = filepath.Base(path)
	}
	return &d, nil
}

// convertElements turns raw dump elements into records. Elements without a
// usable native id and non-scalar property values are skipped rather than
// failing the load.
func convertElements(modelIdx int, d *dumpFile) []model.ElementRecord {
	out := make([]model.ElementRecord, 0, len(d.Elements))
	for _, de := range d.Elements {
		if de.ID <= 0 {
			zap.L().Warn("ingest: skipping element without native id",
				zap.String("file", d.Filename),
				zap.String("type", de.Type),
			)
			continue
		}

		var props map[string]model.PropertyValue
		if len(de.Properties) > 0 {
			props = make(map[string]model.PropertyValue, len(de.Properties))
			for k, v := range de.Properties {
				pv, ok := model.PropertyFromAny(v)
				if !ok {
					zap.L().Debug("ingest: dropping non-scalar property",
						zap.String("file", d.Filename),
						zap.Int64("id", de.ID),
						zap.String("key", k),
					)
					continue
				}
				props[k] = pv
			}
		}

		out = append(out, model.ElementRecord{
			Ref:        model.SessionRef{Model: modelIdx, NativeID: de.ID},
			EntityType: de.Type,
			Name:       de.Name,
			Storey:     de.Storey,
			SourceFile: d.Filename,
			Properties: props,
		})
	}
	return out
}
