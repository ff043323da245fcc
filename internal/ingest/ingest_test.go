package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildplane/takeoff-cli/internal/model"
)

func writeDump(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const archDump = `{
  "filename": "arch.ifc",
  "schema": "IFC4",
  "storeys": [
    {"name": "Level 1", "elevation": 0},
    {"name": "Level 2", "elevation": 3.5}
  ],
  "elements": [
    {"id": 100, "type": "IfcWall", "name": "Basic Wall:Generic", "storey": "Level 1",
     "properties": {"Pset_WallCommon.IsExternal": true, "BaseQuantities.GrossSideArea": 12.5}},
    {"id": 101, "type": "IfcDoor", "name": "Door:Single", "storey": "Level 1",
     "properties": {"Bad.Nested": {"x": 1}, "Dimensions.Height": 2.1}},
    {"id": 0, "type": "IfcWall", "name": "broken"}
  ]
}`

const mepDump = `{
  "filename": "mep.ifc",
  "storeys": [{"name": "Level 1", "elevation": 99}],
  "elements": [
    {"id": 200, "type": "IfcFlowTerminal", "name": "VAV", "storey": "Level 2"}
  ]
}`

func TestLoadFiles(t *testing.T) {
	t.Parallel()

	arch := writeDump(t, "arch.json", archDump)
	mep := writeDump(t, "mep.json", mepDump)

	s, err := LoadFiles(context.Background(), []string{arch, mep}, 4)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	require.Len(t, s.Models, 2)
	assert.Equal(t, model.ModelInfo{Index: 0, Filename: "arch.ifc", Schema: "IFC4", ElementCount: 2}, s.Models[0])
	assert.Equal(t, "mep.ifc", s.Models[1].Filename)

	// Element with id 0 skipped; non-scalar property dropped.
	require.Len(t, s.Elements, 3)
	door := s.Elements[1]
	assert.Equal(t, model.SessionRef{Model: 0, NativeID: 101}, door.Ref)
	assert.NotContains(t, door.Properties, "Bad.Nested")
	assert.Contains(t, door.Properties, "Dimensions.Height")

	// First file to name a storey wins.
	assert.Equal(t, 0.0, s.Storeys["Level 1"])
	assert.Equal(t, 3.5, s.Storeys["Level 2"])

	// Second model carries index 1.
	assert.Equal(t, model.SessionRef{Model: 1, NativeID: 200}, s.Elements[2].Ref)
}

func TestLoadFilesDefaultFilename(t *testing.T) {
	t.Parallel()

	path := writeDump(t, "site.json", `{"elements": [{"id": 1, "type": "IfcWall"}]}`)
	s, err := LoadFiles(context.Background(), []string{path}, 4)
	require.NoError(t, err)
	assert.Equal(t, "site.json", s.Models[0].Filename)
}

func TestLoadFilesErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFiles(context.Background(), nil, 4)
	assert.Error(t, err)

	_, err = LoadFiles(context.Background(), []string{"/nonexistent/dump.json"}, 4)
	assert.Error(t, err)

	bad := writeDump(t, "bad.json", "not json")
	_, err = LoadFiles(context.Background(), []string{bad}, 4)
	assert.Error(t, err)
}
