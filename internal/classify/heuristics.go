package classify

import (
	"sort"
	"strings"

	"github.com/buildplane/takeoff-cli/internal/model"
)

// family buckets entity types into the broad groups the contextual
// heuristics know how to refine.
type family int

const (
	famNone family = iota
	famWall
	famDoor
	famWindow
	famSlab
	famFooting
)

func familyOf(entityType string) family {
	t := strings.ToLower(entityType)
	switch {
	case strings.HasPrefix(t, "ifcwall"), t == "ifccurtainwall":
		return famWall
	case t == "ifcdoor", t == "ifcdoorstandardcase":
		return famDoor
	case t == "ifcwindow", t == "ifcwindowstandardcase":
		return famWindow
	case t == "ifcslab", t == "ifcslabstandardcase", t == "ifcplate":
		return famSlab
	case t == "ifcfooting", t == "ifcpile":
		return famFooting
	}
	return famNone
}

// typeDefaults maps entity types to a fallback leaf code. Types absent from
// the table have no safe default and fall through to unclassified.
var typeDefaults = map[string]string{
	"ifcwall":               "B2010",
	"ifcwallstandardcase":   "B2010",
	"ifccurtainwall":        "B2010",
	"ifcwindow":             "B2020",
	"ifcwindowstandardcase": "B2020",
	"ifcdoor":               "C1020",
	"ifcdoorstandardcase":   "C1020",
	"ifcslab":               "B1010",
	"ifcslabstandardcase":   "B1010",
	"ifcplate":              "B1010",
	"ifcfooting":            "A1010",
	"ifcpile":               "A1010",
	"ifcstair":              "C2010",
	"ifcstairflight":        "C2010",
	"ifcrailing":            "C2010",
	"ifccovering":           "C3010",
	"ifcsanitaryterminal":   "D2010",
	"ifcflowterminal":       "D2010",
	"ifcroof":               "B1020",
	"ifcfurnishingelement":  "E2010",
}

func typeDefault(entityType string) string {
	return typeDefaults[strings.ToLower(entityType)]
}

// exteriorSignal reads the is-exterior flag from a property bag. Exporters
// encode it under varying key spellings ("IsExternal", "External") and
// varying literal conventions, so both key and value matching are loose.
// known is false when no external-ish property carries a recognizable value.
func exteriorSignal(props map[string]model.PropertyValue) (exterior, known bool) {
	keys := make([]string, 0, len(props))
	for k := range props {
		if strings.Contains(strings.ToLower(k), "external") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := props[k]
		switch v.Kind {
		case model.KindBool:
			return v.Bool, true
		case model.KindNumber:
			if v.Num == 1 {
				return true, true
			}
			if v.Num == 0 {
				return false, true
			}
		case model.KindString:
			switch strings.ToLower(strings.TrimSpace(v.Str)) {
			case "true", "yes", "y", "1":
				return true, true
			case "false", "no", "n", "0":
				return false, true
			}
		}
	}
	return false, false
}

var belowGradeIndicators = []string{"basement", "underground", "cellar"}

// belowGrade reports whether a spatial container name indicates a
// below-grade storey.
func belowGrade(container string) bool {
	c := strings.ToLower(container)
	for _, ind := range belowGradeIndicators {
		if strings.Contains(c, ind) {
			return true
		}
	}
	return false
}

// heuristicCode runs the per-family contextual rules. It returns the
// refined leaf code, or empty when no rule fires and the cascade should
// fall through to the type default.
func heuristicCode(e model.ElementRecord) string {
	ext, extKnown := exteriorSignal(e.Properties)
	name := strings.ToLower(e.Name)

	switch familyOf(e.EntityType) {
	case famWall:
		if belowGrade(e.Storey) {
			return "A2020"
		}
		if extKnown && ext {
			return "B2010"
		}
		if extKnown && !ext {
			return "C1010"
		}

	case famDoor:
		if extKnown && ext {
			return "B2030"
		}
		if extKnown && !ext {
			return "C1020"
		}

	case famWindow:
		if extKnown && ext {
			return "B2020"
		}

	case famSlab:
		if strings.Contains(name, "roof") {
			return "B1020"
		}
		if belowGrade(e.Storey) || strings.Contains(name, "grade") {
			return "A1030"
		}

	case famFooting:
		if strings.Contains(name, "pile") || strings.Contains(name, "caisson") {
			return "A1020"
		}
	}
	return ""
}
