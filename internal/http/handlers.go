package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/taxonomy"
)

type taxonomyResponse struct {
	Expense []taxonomy.Category `json:"expense"`
	Income  []taxonomy.Category `json:"income"`
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	tax := s.svc.Taxonomy()
	NewJSONResponse().Body(taxonomyResponse{
		Expense: tax.CategoriesForType(core.Expense),
		Income:  tax.CategoriesForType(core.Income),
	}).Write(w)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	desc := sanitizeInput(r.URL.Query().Get("description"))
	if desc == "" {
		BadRequestError("description is required").Write(w)
		return
	}
	NewJSONResponse().Body(s.svc.Preview(desc)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	txs, err := s.svc.List(r.Context(), owner)
	if err != nil {
		ServiceError(r, err, "list transactions").Write(w)
		return
	}

	if r.URL.Query().Has("month") {
		month, err := ParseMonthParam(r.URL.Query(), "month", s.now())
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		var filtered []core.Transaction
		for _, tx := range txs {
			if month.Contains(tx.Date) {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(txs).Write(w)
}

// transactionRequest is the editable part of a transaction.
type transactionRequest struct {
	Date        core.Date   `json:"date"`
	Amount      core.Money  `json:"amount"`
	Description string      `json:"description"`
	Type        core.TxType `json:"type"`
	Category    string      `json:"category,omitempty"`
	Subcategory string      `json:"subcategory,omitempty"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(decodeMessage(err)).Write(w)
		return
	}

	tx, err := s.svc.Create(r.Context(), services.CreateInput{
		OwnerID:     owner,
		Date:        req.Date,
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Type:        req.Type,
		Category:    sanitizeInput(req.Category),
		Subcategory: sanitizeInput(req.Subcategory),
	})
	if err != nil {
		ServiceError(r, err, "save the transaction").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Header("Location", "/api/transactions/"+tx.ID).Body(tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(decodeMessage(err)).Write(w)
		return
	}

	tx, err := s.svc.Update(r.Context(), core.Transaction{
		ID:          r.PathValue("id"),
		OwnerID:     owner,
		Date:        req.Date,
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Type:        req.Type,
		Category:    sanitizeInput(req.Category),
		Subcategory: sanitizeInput(req.Subcategory),
	})
	if err != nil {
		ServiceError(r, err, "update the transaction").Write(w)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		ServiceError(r, err, "delete the transaction").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// handleBulkDelete removes a month with ?month=YYYY-MM or everything with
// ?all=true. One of the two is required so a bare DELETE never wipes data.
func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var (
		n   int64
		err error
	)
	switch {
	case q.Get("month") != "":
		month, perr := core.ParseMonth(q.Get("month"))
		if perr != nil {
			BadRequestError(perr.Error()).Write(w)
			return
		}
		n, err = s.svc.DeleteMonth(r.Context(), owner, month)
	case q.Get("all") == "true":
		n, err = s.svc.DeleteAll(r.Context(), owner)
	default:
		BadRequestError("either month=YYYY-MM or all=true is required").Write(w)
		return
	}
	if err != nil {
		ServiceError(r, err, "delete transactions").Write(w)
		return
	}
	NewJSONResponse().Body(deletedResponse{Deleted: n}).Write(w)
}

type classifiedResponse struct {
	Classified int `json:"classified"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	n, err := s.svc.Classify(r.Context(), owner)
	if err != nil {
		ServiceError(r, err, "classify transactions").Write(w)
		return
	}
	NewJSONResponse().Body(classifiedResponse{Classified: n}).Write(w)
}
