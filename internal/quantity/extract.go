// Package quantity detects physical quantities in element property bags.
// Exporters disagree on where dimensional data lives: some write standard
// base-quantity sets (Qto_*, BaseQuantities), some write authoring-tool
// dimension sets, and some scatter measurements across arbitrary property
// sets. Extraction therefore accepts a pair either by its container name or
// by dimension keywords in the property name itself; since every accepted
// pair must still categorize by property-name keyword, the keyword pass is
// the one that decides.
package quantity

import (
	"strings"

	"github.com/buildplane/takeoff-cli/internal/model"
)

// Quantities is the canonical metric measurement of one element. Zero means
// the dimension was not detected, not that it was measured as zero.
type Quantities struct {
	Area   float64 `json:"area"`
	Volume float64 `json:"volume"`
	Length float64 `json:"length"`
	Count  float64 `json:"count"`
}

// category indices, in match priority order.
const (
	catArea = iota
	catVolume
	catLength
	catCount
	catNone
)

var lengthKeywords = []string{"length", "height", "width", "depth", "perimeter", "thickness"}

// categorize assigns a property name to exactly one quantity category.
// Priority is fixed: area before volume before length before count, so a
// name matching several keywords lands in the first category.
func categorize(name string) int {
	switch {
	case strings.Contains(name, "area"), strings.Contains(name, "surface"):
		return catArea
	case strings.Contains(name, "volume"):
		return catVolume
	case containsAny(name, lengthKeywords...):
		return catLength
	case strings.Contains(name, "count"):
		return catCount
	}
	return catNone
}

type candidate struct {
	name  string
	value float64
}

// Extract returns the canonical quantities for one property bag. It is a
// pure function of its input: only positive numeric values participate,
// non-numeric values for matching keys are ignored rather than coerced, and
// within each category a "gross" measurement beats net duplicates, with the
// maximum taken as the conservative tie-break when sets disagree.
func Extract(props map[string]model.PropertyValue) Quantities {
	var cands [catNone][]candidate

	for key, val := range props {
		num, ok := val.Number()
		if !ok || num <= 0 {
			continue
		}

		// The property name is everything after the set-name prefix. Keys
		// without a set prefix are treated as bare property names.
		name := key
		if _, rest, found := strings.Cut(key, "."); found {
			name = rest
		}
		name = strings.ToLower(name)

		cat := categorize(name)
		if cat == catNone {
			continue
		}
		cands[cat] = append(cands[cat], candidate{name: name, value: num})
	}

	return Quantities{
		Area:   pick(cands[catArea]),
		Volume: pick(cands[catVolume]),
		Length: pick(cands[catLength]),
		Count:  pick(cands[catCount]),
	}
}

// pick resolves gross-vs-net duplicates: prefer the maximum among "gross"
// candidates when any exist, otherwise the maximum among all.
func pick(cands []candidate) float64 {
	var best, bestGross float64
	hasGross := false
	for _, c := range cands {
		if c.value > best {
			best = c.value
		}
		if strings.Contains(c.name, "gross") {
			hasGross = true
			if c.value > bestGross {
				bestGross = c.value
			}
		}
	}
	if hasGross {
		return bestGross
	}
	return best
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
