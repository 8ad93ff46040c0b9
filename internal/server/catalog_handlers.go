package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/geobukschool/jungsi-engine/internal/modules/risk"
)

// handleCatalogUnits lists the admission units for an exam year. The year
// defaults to the configured cohort.
func (s *Server) handleCatalogUnits(w http.ResponseWriter, r *http.Request) {
	year := s.examYear
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = parsed
	}

	units, err := s.catalogRepo.GetUnitsByYear(r.Context(), year)
	if err != nil {
		s.log.Error().Err(err).Int("year", year).Msg("Failed to list admission units")
		s.respondError(w, http.StatusInternalServerError, "failed to list admission units")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"exam_year": year,
		"count":     len(units),
		"units":     units,
	})
}

// cutImportRequest is the body of POST /api/catalog/cuts. Callers either
// send explicit per-level points or the two cutoff anchors; the classifier
// interpolates the rest of the grid at read time.
type cutImportRequest struct {
	UnitID           int64           `json:"unit_id"`
	DataYear         int             `json:"data_year"`
	Points           []risk.CutPoint `json:"points,omitempty"`
	InitialCut       *float64        `json:"initial_cut,omitempty"`
	SupplementaryCut *float64        `json:"supplementary_cut,omitempty"`
}

func (req *cutImportRequest) resolvePoints() ([]risk.CutPoint, error) {
	if len(req.Points) > 0 {
		for _, p := range req.Points {
			if p.Level < -5 || p.Level > 5 || p.Level == 0 {
				return nil, fmt.Errorf("invalid cut level %d", p.Level)
			}
		}
		return req.Points, nil
	}
	if req.InitialCut != nil && req.SupplementaryCut != nil {
		return risk.FromAnchors(req.UnitID, *req.InitialCut, *req.SupplementaryCut).Points, nil
	}
	return nil, fmt.Errorf("either points or both cutoff anchors are required")
}

// handleCatalogCutImport replaces the recorded cut points for one unit and
// data year.
func (s *Server) handleCatalogCutImport(w http.ResponseWriter, r *http.Request) {
	var req cutImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UnitID <= 0 || req.DataYear <= 0 {
		s.respondError(w, http.StatusBadRequest, "unit_id and data_year are required")
		return
	}

	points, err := req.resolvePoints()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	unit, err := s.catalogRepo.GetUnit(r.Context(), req.UnitID)
	if err != nil {
		s.log.Error().Err(err).Int64("unit_id", req.UnitID).Msg("Failed to load admission unit")
		s.respondError(w, http.StatusInternalServerError, "failed to load admission unit")
		return
	}
	if unit == nil {
		s.respondError(w, http.StatusNotFound, "admission unit not found")
		return
	}

	if err := s.catalogRepo.SaveCutPoints(r.Context(), req.UnitID, req.DataYear, points); err != nil {
		s.log.Error().Err(err).Int64("unit_id", req.UnitID).Msg("Failed to save cut points")
		s.respondError(w, http.StatusInternalServerError, "failed to save cut points")
		return
	}

	s.log.Info().
		Int64("unit_id", req.UnitID).
		Int("data_year", req.DataYear).
		Int("points", len(points)).
		Msg("Cut points imported")

	s.respondJSON(w, http.StatusOK, map[string]any{
		"unit_id":   req.UnitID,
		"data_year": req.DataYear,
		"points":    len(points),
	})
}
