package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/buildplane/takeoff-cli/internal/aggregate"
)

// Workbook writes both aggregation trees to an XLSX file: a summary sheet
// with grand totals, then one sheet per mode with indented roll-up rows.
func Workbook(path string, spatial, classification *aggregate.Result) (err error) {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, spatial, classification); err != nil {
		return err
	}
	if err := addTreeSheet(f, "Spatial", spatial); err != nil {
		return err
	}
	if err := addTreeSheet(f, "Classification", classification); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, spatial, classification *aggregate.Result) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	writeRow(sheet, "", "EA", "SF", "LF", "CY")
	writeTotalsRow(sheet, "All elements", spatial.Totals, 0)
	writeRow(sheet)
	writeRow(sheet, "Spatial groups", aggregate.FormatCount(len(spatial.Roots)))
	writeRow(sheet, "Classification groups", aggregate.FormatCount(len(classification.Roots)))
	if classification.Unclassified != nil {
		writeTotalsRow(sheet, aggregate.UnclassifiedLabel, classification.Unclassified.Totals, 0)
	}
	return nil
}

func addTreeSheet(f *xlsx.File, name string, res *aggregate.Result) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	writeRow(sheet, "Group", "EA", "SF", "LF", "CY")
	writeNodes(sheet, res.Roots, 0)
	if res.Unclassified != nil {
		writeTotalsRow(sheet, res.Unclassified.Label, res.Unclassified.Totals, 0)
	}
	writeTotalsRow(sheet, "Total", res.Totals, 0)
	return nil
}

func writeNodes(sheet *xlsx.Sheet, nodes []*aggregate.Node, depth int) {
	for _, n := range nodes {
		label := n.Label
		if n.Code != "" && n.Code != n.Label {
			label = n.Code + " " + n.Label
		}
		writeTotalsRow(sheet, label, n.Totals, depth)
		writeNodes(sheet, n.Children, depth+1)
	}
}

func writeTotalsRow(sheet *xlsx.Sheet, label string, t aggregate.Totals, depth int) {
	writeRow(sheet,
		strings.Repeat("  ", depth)+label,
		aggregate.FormatCount(t.Count),
		aggregate.FormatQty(t.AreaSF),
		aggregate.FormatQty(t.LengthLF),
		aggregate.FormatQty(t.VolumeCY),
	)
}

func writeRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().Value = c
	}
}
