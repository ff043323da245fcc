// Package aggregate folds per-element quantities into display trees. Two
// groupings are supported: spatial (storey, then entity type) and
// classification (taxonomy level 1 through 3). Ancestors are accumulated in
// the same traversal as leaves, so roll-up totals are exact sums of their
// descendants by construction and no element is ever counted twice.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/buildplane/takeoff-cli/internal/model"
	"github.com/buildplane/takeoff-cli/internal/quantity"
	"github.com/buildplane/takeoff-cli/internal/taxonomy"
)

// Mode selects the grouping hierarchy.
type Mode string

// Grouping modes.
const (
	ModeSpatial        Mode = "spatial"
	ModeClassification Mode = "classification"
)

// ParseMode validates a mode string. Unknown modes are a caller bug and
// fail loudly.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSpatial, ModeClassification:
		return Mode(s), nil
	}
	return "", eris.Errorf("aggregate: unknown mode %q", s)
}

// Metric-to-imperial conversion factors for the unit columns.
const (
	SquareFeetPerSquareMeter = 10.7639
	FeetPerMeter             = 3.28084
	CubicYardsPerCubicMeter  = 1.30795
)

// UnclassifiedLabel names the bucket for elements with no classification.
const UnclassifiedLabel = "Unclassified"

// Totals is one aggregate cell set: element count plus converted unit
// columns, and the keys of every member element.
type Totals struct {
	Count    int      `json:"count"`
	AreaSF   float64  `json:"area_sf"`
	LengthLF float64  `json:"length_lf"`
	VolumeCY float64  `json:"volume_cy"`
	Members  []string `json:"members,omitempty"`
}

func (t *Totals) add(key string, q quantity.Quantities) {
	t.Count++
	t.AreaSF += q.Area * SquareFeetPerSquareMeter
	t.LengthLF += q.Length * FeetPerMeter
	t.VolumeCY += q.Volume * CubicYardsPerCubicMeter
	t.Members = append(t.Members, key)
}

// Node is one level of an aggregation tree.
type Node struct {
	Code     string  `json:"code,omitempty"`
	Label    string  `json:"label"`
	Totals   Totals  `json:"totals"`
	Children []*Node `json:"children,omitempty"`

	elevation float64
	hasElev   bool
	children  map[string]*Node
}

func (n *Node) child(key, code, label string) *Node {
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	c, ok := n.children[key]
	if !ok {
		c = &Node{Code: code, Label: label}
		n.children[key] = c
		n.Children = append(n.Children, c)
	}
	return c
}

// Result is the output of one full aggregation pass.
type Result struct {
	Mode         Mode    `json:"mode"`
	Roots        []*Node `json:"roots"`
	Unclassified *Node   `json:"unclassified,omitempty"`
	Totals       Totals  `json:"totals"`
}

// Input carries everything one aggregation pass reads.
type Input struct {
	Elements        []model.ElementRecord
	Classifications map[model.SessionRef]model.ClassificationRecord
	Elevations      map[string]float64
	Taxonomy        *taxonomy.Table
}

// Build runs one full aggregation pass. There is no incremental path: any
// mutation to the element set or classification state requires a rebuild.
func Build(mode Mode, in Input) (*Result, error) {
	switch mode {
	case ModeSpatial:
		return buildSpatial(in), nil
	case ModeClassification:
		return buildClassification(in), nil
	}
	return nil, eris.Errorf("aggregate: unknown mode %q", mode)
}

func buildSpatial(in Input) *Result {
	res := &Result{Mode: ModeSpatial}
	root := &Node{}

	for _, el := range in.Elements {
		key := el.Ref.String()
		q := quantity.Extract(el.Properties)

		container := el.Storey
		if container == "" {
			container = model.UnassignedStorey
		}

		storey := root.child(container, "", container)
		if elev, ok := in.Elevations[container]; ok {
			storey.elevation = elev
			storey.hasElev = true
		}
		leaf := storey.child(el.EntityType, "", el.EntityType)

		res.Totals.add(key, q)
		storey.Totals.add(key, q)
		leaf.Totals.add(key, q)
	}

	res.Roots = root.Children
	sortSpatial(res.Roots)
	return res
}

// sortSpatial orders storeys by descending elevation, storeys with no known
// elevation after those by name, and the unassigned bucket last. Type rows
// under each storey sort by name.
func sortSpatial(storeys []*Node) {
	sort.SliceStable(storeys, func(i, j int) bool {
		a, b := storeys[i], storeys[j]
		if ua, ub := a.Label == model.UnassignedStorey, b.Label == model.UnassignedStorey; ua != ub {
			return ub
		}
		if a.hasElev != b.hasElev {
			return a.hasElev
		}
		if a.hasElev && a.elevation != b.elevation {
			return a.elevation > b.elevation
		}
		return a.Label < b.Label
	})
	for _, s := range storeys {
		sort.Slice(s.Children, func(i, j int) bool {
			return s.Children[i].Label < s.Children[j].Label
		})
	}
}

func buildClassification(in Input) *Result {
	res := &Result{Mode: ModeClassification}
	root := &Node{}
	unclassified := &Node{Label: UnclassifiedLabel}

	for _, el := range in.Elements {
		key := el.Ref.String()
		q := quantity.Extract(el.Properties)
		res.Totals.add(key, q)

		rec := in.Classifications[el.Ref]
		if !rec.Classified() {
			unclassified.Totals.add(key, q)
			continue
		}

		l1 := taxonomy.Level1(rec.Code)
		l2 := taxonomy.Level2(rec.Code)

		n1 := root.child(l1, l1, in.Taxonomy.Level1Label(l1))
		n2 := n1.child(l2, l2, in.Taxonomy.Level2Label(l2))
		n3 := n2.child(rec.Code, rec.Code, in.Taxonomy.LeafLabel(rec.Code))

		n1.Totals.add(key, q)
		n2.Totals.add(key, q)
		n3.Totals.add(key, q)
	}

	res.Roots = root.Children
	sortByCode(res.Roots)
	if unclassified.Totals.Count > 0 {
		res.Unclassified = unclassified
	}
	return res
}

func sortByCode(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Code < nodes[j].Code
	})
	for _, n := range nodes {
		sortByCode(n.Children)
	}
}
