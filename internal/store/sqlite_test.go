package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildplane/takeoff-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "takeoff.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testSession() *model.Session {
	return &model.Session{
		ID:       "11111111-2222-3333-4444-555555555555",
		LoadedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Models: []model.ModelInfo{
			{Index: 0, Filename: "arch.ifc", Schema: "IFC4", ElementCount: 2},
			{Index: 1, Filename: "mep.ifc", ElementCount: 1},
		},
		Storeys: map[string]float64{"Level 1": 0, "Level 2": 3.5},
		Elements: []model.ElementRecord{
			{
				Ref:        model.SessionRef{Model: 0, NativeID: 100},
				EntityType: "IfcWall",
				Name:       "Basic Wall:Generic",
				Storey:     "Level 1",
				SourceFile: "arch.ifc",
				Properties: map[string]model.PropertyValue{
					"Pset_WallCommon.IsExternal":   model.BoolValue(true),
					"BaseQuantities.GrossSideArea": model.NumberValue(12.5),
					"Identity.Mark":                model.StringValue("W-01"),
				},
			},
			{
				Ref:        model.SessionRef{Model: 0, NativeID: 101},
				EntityType: "IfcDoor",
				Storey:     "Level 1",
				SourceFile: "arch.ifc",
			},
			{
				Ref:        model.SessionRef{Model: 1, NativeID: 200},
				EntityType: "IfcFlowTerminal",
				Storey:     "Level 2",
				SourceFile: "mep.ifc",
			},
		},
	}
}

func TestSQLiteSessionRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.LoadSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	sess := testSession()
	require.NoError(t, s.ReplaceSession(ctx, sess))

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.Models, got.Models)
	assert.Equal(t, sess.Storeys, got.Storeys)
	require.Len(t, got.Elements, 3)
	assert.Equal(t, sess.Elements[0].Properties, got.Elements[0].Properties)
	assert.Nil(t, got.Elements[1].Properties)
}

func TestSQLiteReplaceSessionIsAtomicSwap(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceSession(ctx, testSession()))

	second := &model.Session{
		ID:       "replacement",
		LoadedAt: time.Now().UTC(),
		Models:   []model.ModelInfo{{Index: 0, Filename: "struct.ifc", ElementCount: 1}},
		Storeys:  map[string]float64{"Roof": 12},
		Elements: []model.ElementRecord{{
			Ref:        model.SessionRef{Model: 0, NativeID: 1},
			EntityType: "IfcBeam",
			SourceFile: "struct.ifc",
		}},
	}
	require.NoError(t, s.ReplaceSession(ctx, second))

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "replacement", got.ID)
	assert.Len(t, got.Models, 1)
	assert.Len(t, got.Elements, 1)
}

func TestSQLiteOverridesRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	empty, err := s.LoadOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	ov := map[model.ElementID]string{
		{File: "arch.ifc", NativeID: 100}: "C1010",
		{File: "gone.ifc", NativeID: 7}:   "B2010",
	}
	require.NoError(t, s.SaveOverrides(ctx, ov))

	got, err := s.LoadOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, ov, got)

	// Save is complete-set: removing an entry removes it from storage.
	delete(ov, model.ElementID{File: "gone.ifc", NativeID: 7})
	require.NoError(t, s.SaveOverrides(ctx, ov))
	got, err = s.LoadOverrides(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
