package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buildplane/takeoff-cli/internal/model"
)

func TestExteriorSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		props    map[string]model.PropertyValue
		exterior bool
		known    bool
	}{
		{"bool true", map[string]model.PropertyValue{"Pset_WallCommon.IsExternal": model.BoolValue(true)}, true, true},
		{"bool false", map[string]model.PropertyValue{"Pset_WallCommon.IsExternal": model.BoolValue(false)}, false, true},
		{"string yes", map[string]model.PropertyValue{"Other.External": model.StringValue("Yes")}, true, true},
		{"string n", map[string]model.PropertyValue{"Other.External": model.StringValue("n")}, false, true},
		{"numeric one", map[string]model.PropertyValue{"Data.IsExternal": model.NumberValue(1)}, true, true},
		{"numeric zero", map[string]model.PropertyValue{"Data.IsExternal": model.NumberValue(0)}, false, true},
		{"unrecognized literal", map[string]model.PropertyValue{"Data.IsExternal": model.StringValue("maybe")}, false, false},
		{"no external key", map[string]model.PropertyValue{"Data.FireRating": model.NumberValue(60)}, false, false},
		{"nil bag", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ext, known := exteriorSignal(tt.props)
			assert.Equal(t, tt.known, known)
			if tt.known {
				assert.Equal(t, tt.exterior, ext)
			}
		})
	}
}

func TestHeuristicCode(t *testing.T) {
	t.Parallel()

	ext := map[string]model.PropertyValue{"Pset_WallCommon.IsExternal": model.BoolValue(true)}
	inte := map[string]model.PropertyValue{"Pset_WallCommon.IsExternal": model.BoolValue(false)}

	tests := []struct {
		name string
		el   model.ElementRecord
		want string
	}{
		{"exterior wall", model.ElementRecord{EntityType: "IfcWall", Properties: ext}, "B2010"},
		{"interior wall", model.ElementRecord{EntityType: "IfcWallStandardCase", Properties: inte}, "C1010"},
		{"basement wall wins over exterior flag", model.ElementRecord{EntityType: "IfcWall", Storey: "Basement 1", Properties: ext}, "A2020"},
		{"underground container", model.ElementRecord{EntityType: "IfcWall", Storey: "Underground Parking"}, "A2020"},
		{"wall without signal falls through", model.ElementRecord{EntityType: "IfcWall"}, ""},
		{"exterior door", model.ElementRecord{EntityType: "IfcDoor", Properties: ext}, "B2030"},
		{"interior door", model.ElementRecord{EntityType: "IfcDoor", Properties: inte}, "C1020"},
		{"door without signal falls through", model.ElementRecord{EntityType: "IfcDoor"}, ""},
		{"exterior window", model.ElementRecord{EntityType: "IfcWindow", Properties: ext}, "B2020"},
		{"roof slab", model.ElementRecord{EntityType: "IfcSlab", Name: "Roof Slab 200mm"}, "B1020"},
		{"slab on grade by name", model.ElementRecord{EntityType: "IfcSlab", Name: "Slab on Grade"}, "A1030"},
		{"slab on grade by storey", model.ElementRecord{EntityType: "IfcSlab", Storey: "Basement"}, "A1030"},
		{"ordinary slab falls through", model.ElementRecord{EntityType: "IfcSlab", Name: "Generic 150mm"}, ""},
		{"pile cap", model.ElementRecord{EntityType: "IfcFooting", Name: "Pile Cap PC-3"}, "A1020"},
		{"plain footing falls through", model.ElementRecord{EntityType: "IfcFooting", Name: "Strip Footing"}, ""},
		{"unhandled family", model.ElementRecord{EntityType: "IfcBeam", Name: "W310x52"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, heuristicCode(tt.el))
		})
	}
}

func TestTypeDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "B2010", typeDefault("IfcWall"))
	assert.Equal(t, "C1020", typeDefault("ifcdoor"))
	assert.Equal(t, "", typeDefault("IfcBuildingElementProxy"))
	assert.Equal(t, "", typeDefault("IfcColumn"))
}
