package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/export"
	"github.com/couchcryptid/water-quality-etl/internal/ingest"
)

type errorResponse struct {
	Error         string   `json:"error"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

type importResponse struct {
	ingest.Result
	Error string `json:"error,omitempty"`
}

type manualSample struct {
	Location  string                `json:"location"`
	Latitude  *float64              `json:"latitude"`
	Longitude *float64              `json:"longitude"`
	Date      string                `json:"date"`
	Metals    domain.Concentrations `json:"metals"`
}

type assessRequest struct {
	Metals domain.Concentrations `json:"metals"`
}

type assessResponse struct {
	Indices domain.IndexSet       `json:"indices"`
	Quality domain.QualityBands   `json:"quality"`
	Risk    domain.RiskAssessment `json:"risk"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, errorResponse{Error: msg})
}

func views(samples []domain.Sample) []domain.SampleView {
	out := make([]domain.SampleView, len(samples))
	for i, s := range samples {
		out[i] = s.View()
	}
	return out
}

func (s *Server) handleStandards(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"standards": s.deps.Standards.Entries()})
}

// handleImport ingests a CSV body. Skipped rows are reported, not failed; a
// batch that accepts nothing answers 422 so clients can tell the user there
// was nothing to import.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)

	tbl, err := ingest.ReadCSV(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Ingestor.Ingest(r.Context(), tbl)
	if err != nil {
		var missing *ingest.MissingFieldsError
		if errors.As(err, &missing) {
			sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{
				Error:         err.Error(),
				MissingFields: missing.Fields,
			})
			return
		}
		s.logger.Error("import failed", "error", err, "accepted", res.Accepted)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	if res.Empty() {
		sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, importResponse{Result: res, Error: "no valid data"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, importResponse{Result: res})
}

func (s *Server) handleCreateSample(w http.ResponseWriter, r *http.Request) {
	var req manualSample
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Location) == "" {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	if !req.Metals.Any() {
		writeError(w, http.StatusBadRequest, "at least one metal concentration must be greater than 0")
		return
	}

	var date domain.Date
	if req.Date != "" {
		d, err := domain.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	sample, err := domain.NewSample(domain.SampleInput{
		Location:  req.Location,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Date:      date,
		Metals:    req.Metals,
		Source:    domain.SourceManual,
	}, s.deps.Standards)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Sink.Append(r.Context(), []domain.Sample{sample}); err != nil {
		s.logger.Error("store manual sample failed", "error", err, "id", sample.ID)
		writeError(w, http.StatusInternalServerError, "store sample failed")
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, sample.View())
}

func (s *Server) handleListSamples(w http.ResponseWriter, _ *http.Request) {
	samples := s.deps.Aggregator.Samples()
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(samples),
		"samples": views(samples),
	})
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	idx := domain.ComputeIndices(req.Metals, s.deps.Standards)
	sharedobs.WriteJSON(w, http.StatusOK, assessResponse{
		Indices: idx,
		Quality: idx.Classify(),
		Risk:    domain.AssessRisk(req.Metals, s.deps.Standards),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board := s.deps.Aggregator.Leaderboard()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		board = board[:min(n, len(board))]
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"leaderboard": views(board)})
}

func (s *Server) handleDistribution(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Aggregator.Distribution())
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Aggregator.Summary())
}

func (s *Server) handleTrend(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"trend": s.deps.Aggregator.Trend()})
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Aggregator.Report())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="water_quality_data.csv"`)
	if err := export.WriteCSV(w, s.deps.Aggregator.Samples()); err != nil {
		s.logger.Error("export failed", "error", err)
	}
}

func (s *Server) handleTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="water_quality_template.csv"`)
	if err := export.WriteTemplate(w); err != nil {
		s.logger.Error("template failed", "error", err)
	}
}
