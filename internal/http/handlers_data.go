package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/importer"
)

const defaultSampleMonths = 6

type importResponse struct {
	importer.Report
	Summary string `json:"summary"`
}

// handleImport reads a CSV export from the request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxImportBody)
	report, err := s.svc.Import(r.Context(), owner, body)
	if err != nil {
		var (
			tooLarge  *http.MaxBytesError
			malformed *csv.ParseError
		)
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "import file larger than "+strconv.Itoa(maxImportBody>>20)+" MB").Write(w)
			return
		}
		if errors.As(err, &malformed) {
			BadRequestError("malformed CSV: " + malformed.Error()).Write(w)
			return
		}
		ServiceError(r, err, "import transactions").Write(w)
		return
	}
	NewJSONResponse().Body(importResponse{Report: report, Summary: report.Summary()}).Write(w)
}

// handleExport buffers the CSV so a storage failure can still produce a
// JSON error instead of a truncated file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.svc.Export(r.Context(), owner, &buf); err != nil {
		ServiceError(r, err, "export transactions").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type sheetsResponse struct {
	Range string `json:"range"`
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	rng, err := s.svc.ExportSheets(r.Context(), owner)
	if err != nil {
		ServiceError(r, err, "export to Google Sheets").Write(w)
		return
	}
	NewJSONResponse().Body(sheetsResponse{Range: rng}).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	budgets, err := s.svc.Budgets(r.Context(), owner)
	if err != nil {
		ServiceError(r, err, "list budgets").Write(w)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	NewJSONResponse().Body(budgets).Write(w)
}

// handleReplaceBudgets replaces the owner's budgets for every month present
// in the body. Months not mentioned keep their budgets.
func (s *Server) handleReplaceBudgets(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var budgets []core.Budget
	if err := DecodeJSON(w, r, &budgets); err != nil {
		BadRequestError(decodeMessage(err)).Write(w)
		return
	}
	for i := range budgets {
		budgets[i].OwnerID = owner
		budgets[i].Category = sanitizeInput(budgets[i].Category)
	}
	if err := s.svc.ReplaceBudgets(r.Context(), owner, budgets); err != nil {
		ServiceError(r, err, "replace budgets").Write(w)
		return
	}
	s.handleListBudgets(w, r)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	month, err := ParseMonthParam(r.URL.Query(), "month", s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	d, err := s.svc.Dashboard(r.Context(), owner, month)
	if err != nil {
		ServiceError(r, err, "build the dashboard").Write(w)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

type sampleResponse struct {
	Created int `json:"created"`
	Months  int `json:"months"`
}

// handleSample generates ?months= (default 6) months of sample data ending
// with the current month.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	months, err := ParseIntParam(r.URL.Query(), "months", defaultSampleMonths)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	n, err := s.svc.GenerateSampleData(r.Context(), owner, months, s.now())
	if err != nil {
		ServiceError(r, err, "generate sample data").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(sampleResponse{Created: n, Months: months}).Write(w)
}
