// Package taxonomy holds the 3-level elemental classification table and the
// code validation used by the classification engine. The table follows the
// UniFormat convention: level-1 codes are single letters, level-2 codes add
// two digits, and level-3 leaf codes are one letter plus four digits.
package taxonomy

import (
	_ "embed"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed uniformat.yaml
var uniformatYAML []byte

// leafPattern matches a normalized leaf code: one top-level letter followed
// by exactly four digits.
var leafPattern = regexp.MustCompile(`^[A-G][0-9]{4}$`)

// separatorStripper removes the separators exporters commonly embed in
// classification codes ("B20.10", "B20-10", "B20 10").
var separatorStripper = strings.NewReplacer(".", "", "-", "", " ", "", "_", "")

// Table is the loaded classification table.
type Table struct {
	level1 map[string]string
	level2 map[string]string
	leaves map[string]string
}

type tableFile struct {
	Levels1 map[string]string `yaml:"levels1"`
	Levels2 map[string]string `yaml:"levels2"`
	Leaves  map[string]string `yaml:"leaves"`
}

// Load parses a taxonomy table from YAML.
func Load(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse table")
	}
	if len(f.Leaves) == 0 {
		return nil, eris.New("taxonomy: table has no leaf codes")
	}
	t := &Table{level1: f.Levels1, level2: f.Levels2, leaves: f.Leaves}
	for code := range f.Leaves {
		if !leafPattern.MatchString(code) {
			return nil, eris.Errorf("taxonomy: invalid leaf code %q", code)
		}
	}
	return t, nil
}

// Default returns the embedded UniFormat table. It panics on a malformed
// embedded file, which can only happen from a bad build.
func Default() *Table {
	t, err := Load(uniformatYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// IsLeaf reports whether code is a known leaf code in its exact form.
func (t *Table) IsLeaf(code string) bool {
	_, ok := t.leaves[code]
	return ok
}

// Normalize validates a raw classification value from source data. It
// uppercases the input, tries it as-is and with separators stripped, and
// returns the known leaf code it matches. ok is false when neither form is
// both pattern-valid and present in the table.
func (t *Table) Normalize(raw string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return "", false
	}
	for _, cand := range []string{v, separatorStripper.Replace(v)} {
		if leafPattern.MatchString(cand) && t.IsLeaf(cand) {
			return cand, true
		}
	}
	return "", false
}

// LeafLabel returns the display name for a leaf code.
func (t *Table) LeafLabel(code string) string {
	return t.leaves[code]
}

// Level1 returns the level-1 prefix of a leaf code (its first character).
func Level1(code string) string {
	if code == "" {
		return ""
	}
	return code[:1]
}

// Level2 returns the level-2 prefix of a leaf code (its first three
// characters).
func Level2(code string) string {
	if len(code) < 3 {
		return code
	}
	return code[:3]
}

// Level1Label returns the display name for a level-1 code.
func (t *Table) Level1Label(code string) string {
	return t.level1[code]
}

// Level2Label returns the display name for a level-2 code.
func (t *Table) Level2Label(code string) string {
	return t.level2[code]
}

// Leaves returns all known leaf codes in sorted order.
func (t *Table) Leaves() []string {
	codes := make([]string, 0, len(t.leaves))
	for code := range t.leaves {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
