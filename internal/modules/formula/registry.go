package formula

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/geobukschool/jungsi-engine/internal/domain"
	"github.com/rs/zerolog"
)

// FormulaNotFoundError reports a registry miss for one (institution, formula
// code) pair. The orchestrator counts it as a per-pair skip.
type FormulaNotFoundError struct {
	InstitutionID int64
	FormulaCode   string
}

func (e *FormulaNotFoundError) Error() string {
	return fmt.Sprintf("no formula definition for institution %d code %q", e.InstitutionID, e.FormulaCode)
}

// RegistryLoadError reports a failed registry load. This is fatal: the
// registry is reference data, and evaluating against a partially loaded
// catalogue would be unsound.
type RegistryLoadError struct {
	Entry string // offending formula key, empty for file-level failures
	Err   error
}

func (e *RegistryLoadError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("registry load failed: %v", e.Err)
	}
	return fmt.Sprintf("registry load failed at %s: %v", e.Entry, e.Err)
}

func (e *RegistryLoadError) Unwrap() error { return e.Err }

// Registry is the versioned catalogue of formula definitions. Loads are
// all-or-nothing: a single malformed entry aborts the whole load and the
// previously loaded set (if any) stays in place.
type Registry struct {
	mu      sync.RWMutex
	version string
	defs    map[string]*FormulaDefinition
	log     zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		defs: make(map[string]*FormulaDefinition),
		log:  log.With().Str("component", "formula_registry").Logger(),
	}
}

// LoadFile loads and validates a definition set from a JSON file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &RegistryLoadError{Err: fmt.Errorf("read definition file: %w", err)}
	}

	var set DefinitionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return &RegistryLoadError{Err: fmt.Errorf("parse definition file: %w", err)}
	}

	return r.Load(set)
}

// Load validates every definition and swaps the catalogue atomically.
func (r *Registry) Load(set DefinitionSet) error {
	defs := make(map[string]*FormulaDefinition, len(set.Formulas))

	for i := range set.Formulas {
		def := set.Formulas[i]
		if err := validate(&def); err != nil {
			return &RegistryLoadError{Entry: def.Key(), Err: err}
		}
		if _, exists := defs[def.Key()]; exists {
			return &RegistryLoadError{Entry: def.Key(), Err: fmt.Errorf("duplicate definition")}
		}
		defs[def.Key()] = &def
	}

	r.mu.Lock()
	r.version = set.Version
	r.defs = defs
	r.mu.Unlock()

	r.log.Info().
		Str("version", set.Version).
		Int("formulas", len(defs)).
		Msg("Formula registry loaded")

	return nil
}

// Lookup returns the definition for the pair, or FormulaNotFoundError.
func (r *Registry) Lookup(institutionID int64, formulaCode string) (*FormulaDefinition, error) {
	r.mu.RLock()
	def, ok := r.defs[Key(institutionID, formulaCode)]
	r.mu.RUnlock()

	if !ok {
		return nil, &FormulaNotFoundError{InstitutionID: institutionID, FormulaCode: formulaCode}
	}
	return def, nil
}

// Version returns the version string of the loaded set.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Count returns the number of loaded definitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// validate checks a single definition at load time. Weights must be
// non-negative and reference only known areas; an unresolvable definition
// aborts the load rather than silently zero-scoring students later.
func validate(def *FormulaDefinition) error {
	if def.InstitutionID <= 0 {
		return fmt.Errorf("institution_id must be positive")
	}
	if def.FormulaCode == "" {
		return fmt.Errorf("formula_code is required")
	}
	if def.TotalScale <= 0 {
		return fmt.Errorf("total_scale must be positive, got %v", def.TotalScale)
	}
	if len(def.Weights) == 0 {
		return fmt.Errorf("weights must not be empty")
	}
	for area, w := range def.Weights {
		if !area.Valid() {
			return fmt.Errorf("unknown area %q in weights", area)
		}
		if w < 0 {
			return fmt.Errorf("negative weight %v for area %s", w, area)
		}
	}
	if _, ok := def.Weights[domain.AreaInquiry]; ok {
		if def.InquiryCount < 1 || def.InquiryCount > 2 {
			return fmt.Errorf("inquiry_count must be 1 or 2 when inquiry is weighted, got %d", def.InquiryCount)
		}
	}
	if def.MathRule != "" && !def.MathRule.Valid() {
		return fmt.Errorf("unknown math_rule %q", def.MathRule)
	}
	if def.InquiryRule != "" && !def.InquiryRule.Valid() {
		return fmt.Errorf("unknown inquiry_rule %q", def.InquiryRule)
	}
	for area, ceiling := range def.Gates.GradeCeilings {
		if !area.Valid() {
			return fmt.Errorf("unknown area %q in grade_ceilings", area)
		}
		if ceiling < 1 || ceiling > 9 {
			return fmt.Errorf("grade ceiling for %s out of range: %d", area, ceiling)
		}
	}
	return nil
}
