// Package export serializes classification and takeoff results to CSV and
// XLSX for downstream estimating tools.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/buildplane/takeoff-cli/internal/aggregate"
	"github.com/buildplane/takeoff-cli/internal/model"
	"github.com/buildplane/takeoff-cli/internal/quantity"
	"github.com/buildplane/takeoff-cli/internal/taxonomy"
)

// sortedElements returns the session elements in deterministic ref order.
func sortedElements(elements []model.ElementRecord) []model.ElementRecord {
	out := make([]model.ElementRecord, len(elements))
	copy(out, elements)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Ref, out[j].Ref
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		return a.NativeID < b.NativeID
	})
	return out
}

// Classification writes one row per element with the assigned code, its
// label, provenance, and confidence.
func Classification(w io.Writer, in aggregate.Input) error {
	cw := csv.NewWriter(w)
	header := []string{"key", "name", "entity_type", "storey", "model", "code", "label", "source", "confidence"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for _, el := range sortedElements(in.Elements) {
		rec := in.Classifications[el.Ref]
		source := string(rec.Source)
		if source == "" {
			source = string(model.SourceNone)
		}
		row := []string{
			el.Ref.String(),
			el.Name,
			el.EntityType,
			el.Storey,
			el.SourceFile,
			rec.Code,
			in.Taxonomy.LeafLabel(rec.Code),
			source,
			fmt.Sprintf("%.2f", rec.Confidence),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row for %s", el.Ref)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// Takeoff writes one row per element with the grouping columns of the given
// mode and the converted unit columns. Zero cells render blank: a missing
// dimension is not a measured zero.
func Takeoff(w io.Writer, mode aggregate.Mode, in aggregate.Input) error {
	cw := csv.NewWriter(w)

	var header []string
	switch mode {
	case aggregate.ModeSpatial:
		header = []string{"storey", "entity_type", "key", "name", "EA", "SF", "LF", "CY"}
	case aggregate.ModeClassification:
		header = []string{"level1", "level2", "level3", "key", "name", "EA", "SF", "LF", "CY"}
	default:
		return eris.Errorf("export: unknown mode %q", mode)
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for _, el := range sortedElements(in.Elements) {
		q := quantity.Extract(el.Properties)
		units := []string{
			aggregate.FormatCount(1),
			aggregate.FormatQty(q.Area * aggregate.SquareFeetPerSquareMeter),
			aggregate.FormatQty(q.Length * aggregate.FeetPerMeter),
			aggregate.FormatQty(q.Volume * aggregate.CubicYardsPerCubicMeter),
		}

		var row []string
		switch mode {
		case aggregate.ModeSpatial:
			storey := el.Storey
			if storey == "" {
				storey = model.UnassignedStorey
			}
			row = []string{storey, el.EntityType, el.Ref.String(), el.Name}
		case aggregate.ModeClassification:
			rec := in.Classifications[el.Ref]
			l1, l2, l3 := aggregate.UnclassifiedLabel, "", ""
			if rec.Classified() {
				l1 = taxonomy.Level1(rec.Code)
				l2 = taxonomy.Level2(rec.Code)
				l3 = rec.Code
			}
			row = []string{l1, l2, l3, el.Ref.String(), el.Name}
		}
		row = append(row, units...)
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row for %s", el.Ref)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}
