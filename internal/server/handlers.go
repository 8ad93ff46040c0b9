package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/geobukschool/jungsi-engine/internal/modules/batch"
)

// runRequest is the body of POST /api/batch/run.
type runRequest struct {
	StudentIDs  []int64 `json:"student_ids,omitempty"`
	ExamYear    int     `json:"exam_year,omitempty"`
	CutDataYear int     `json:"cut_data_year,omitempty"`
}

// handleBatchRun triggers a recompute. The run executes in the background;
// the response carries only the acceptance status, progress flows through
// the events hub and the status endpoint.
func (s *Server) handleBatchRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ExamYear == 0 {
		req.ExamYear = s.examYear
	}

	opts := batch.Options{
		StudentIDs:  req.StudentIDs,
		ExamYear:    req.ExamYear,
		CutDataYear: req.CutDataYear,
	}

	status := s.orchestrator.Status()
	if status.Running {
		s.respondError(w, http.StatusConflict, "a batch run is already in progress")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		if _, err := s.orchestrator.Run(ctx, opts); err != nil && !errors.Is(err, batch.ErrRunInProgress) {
			s.log.Error().Err(err).Msg("Background batch run failed")
		}
	}()

	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"accepted":  true,
		"exam_year": req.ExamYear,
	})
}

// handleBatchStatus returns the orchestrator snapshot plus the latest
// persisted run row.
func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	status := s.orchestrator.Status()

	latest, err := s.resultsRepo.GetLatestRun(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load latest batch run")
		s.respondError(w, http.StatusInternalServerError, "failed to load run history")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"latest_run": latest,
	})
}

// handleStudentResults returns the stored results for one student.
func (s *Server) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	rows, err := s.resultsRepo.GetByStudent(r.Context(), studentID)
	if err != nil {
		s.log.Error().Err(err).Int64("student_id", studentID).Msg("Failed to load results")
		s.respondError(w, http.StatusInternalServerError, "failed to load results")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"student_id": studentID,
		"count":      len(rows),
		"results":    rows,
	})
}

// handleRegistryReload reloads the formula definition file. Load is
// all-or-nothing, so a malformed file leaves the current catalogue active.
func (s *Server) handleRegistryReload(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.LoadFile(s.formulaPath); err != nil {
		s.log.Error().Err(err).Str("path", s.formulaPath).Msg("Registry reload failed")
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"version":  s.registry.Version(),
		"formulas": s.registry.Count(),
	})
}

// handleRegistryInfo reports the loaded registry version and size.
func (s *Server) handleRegistryInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"version":  s.registry.Version(),
		"formulas": s.registry.Count(),
	})
}

// handleHealth reports process and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dbStatus := make(map[string]string, len(s.databases))
	healthy := true
	for name, db := range s.databases {
		if err := db.QuickCheck(ctx); err != nil {
			dbStatus[name] = err.Error()
			healthy = false
		} else {
			dbStatus[name] = "ok"
		}
	}

	cpuPercent, ramPercent := systemStats()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	s.respondJSON(w, status, map[string]any{
		"healthy":     healthy,
		"databases":   dbStatus,
		"cpu_percent": cpuPercent,
		"ram_percent": ramPercent,
		"registry":    s.registry.Version(),
	})
}

// systemStats samples CPU and RAM usage. Failures degrade to zero values.
func systemStats() (float64, float64) {
	var cpuAvg float64
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err == nil && len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("Failed to write response")
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
