package formula

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobukschool/jungsi-engine/internal/domain"
)

func validDefinition() FormulaDefinition {
	return FormulaDefinition{
		InstitutionID: 1001,
		FormulaCode:   "ga",
		Track:         domain.TrackNatural,
		Weights: map[domain.Area]float64{
			domain.AreaKorean:  0.3,
			domain.AreaMath:    0.3,
			domain.AreaInquiry: 0.4,
		},
		InquiryCount: 2,
		BaseScore:    0,
		TotalScale:   1000,
	}
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	err := r.Load(DefinitionSet{
		Version:  "2026-01",
		Formulas: []FormulaDefinition{validDefinition()},
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-01", r.Version())
	assert.Equal(t, 1, r.Count())

	def, err := r.Lookup(1001, "ga")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), def.InstitutionID)
}

func TestRegistry_LookupMiss(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Load(DefinitionSet{Version: "v1", Formulas: []FormulaDefinition{validDefinition()}}))

	_, err := r.Lookup(9999, "ga")
	require.Error(t, err)

	var notFound *FormulaNotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, int64(9999), notFound.InstitutionID)
}

func TestRegistry_LoadIsAllOrNothing(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Load(DefinitionSet{Version: "v1", Formulas: []FormulaDefinition{validDefinition()}}))

	bad := validDefinition()
	bad.FormulaCode = "na"
	bad.TotalScale = -1

	other := validDefinition()
	other.FormulaCode = "da"

	err := r.Load(DefinitionSet{Version: "v2", Formulas: []FormulaDefinition{other, bad}})
	require.Error(t, err)

	var loadErr *RegistryLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, Key(1001, "na"), loadErr.Entry)

	// Previous catalogue stays active.
	assert.Equal(t, "v1", r.Version())
	assert.Equal(t, 1, r.Count())
	_, err = r.Lookup(1001, "da")
	assert.Error(t, err)
}

func TestRegistry_DuplicateDefinitionRejected(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	err := r.Load(DefinitionSet{
		Version:  "v1",
		Formulas: []FormulaDefinition{validDefinition(), validDefinition()},
	})
	require.Error(t, err)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormulaDefinition)
	}{
		{"missing institution", func(d *FormulaDefinition) { d.InstitutionID = 0 }},
		{"missing code", func(d *FormulaDefinition) { d.FormulaCode = "" }},
		{"zero scale", func(d *FormulaDefinition) { d.TotalScale = 0 }},
		{"empty weights", func(d *FormulaDefinition) { d.Weights = nil }},
		{"negative weight", func(d *FormulaDefinition) { d.Weights[domain.AreaMath] = -0.1 }},
		{"unknown weight area", func(d *FormulaDefinition) { d.Weights[domain.Area("bogus")] = 0.2 }},
		{"inquiry count zero", func(d *FormulaDefinition) { d.InquiryCount = 0 }},
		{"inquiry count three", func(d *FormulaDefinition) { d.InquiryCount = 3 }},
		{"unknown math rule", func(d *FormulaDefinition) { d.MathRule = "bogus" }},
		{"unknown inquiry rule", func(d *FormulaDefinition) { d.InquiryRule = "bogus" }},
		{"grade ceiling out of range", func(d *FormulaDefinition) {
			d.Gates.GradeCeilings = map[domain.Area]int{domain.AreaEnglish: 10}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			r := NewRegistry(zerolog.Nop())
			err := r.Load(DefinitionSet{Version: "v1", Formulas: []FormulaDefinition{def}})
			assert.Error(t, err)
		})
	}
}

func TestRegistry_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "formulas.json")
	content := `{
		"version": "2026-02",
		"formulas": [{
			"institution_id": 1001,
			"formula_code": "ga",
			"track": "natural",
			"weights": {"korean": 0.3, "math": 0.3, "inquiry": 0.4},
			"inquiry_count": 2,
			"total_scale": 1000
		}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.LoadFile(path))
	assert.Equal(t, "2026-02", r.Version())

	err := r.LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	var loadErr *RegistryLoadError
	assert.True(t, errors.As(err, &loadErr))
}
