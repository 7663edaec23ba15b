package http

import (
	"net/http"

	"spendy/internal/core"
	"spendy/internal/services"
)

type ledgerListResponse struct {
	Month   core.Month         `json:"month"`
	Entries []core.LedgerEntry `json:"entries"`
	Total   core.Money         `json:"total"`
	Count   int                `json:"count"`
}

type incomeResponse struct {
	core.LedgerEntry
	AutoSave *services.AutoSaveSuggestion `json:"auto_save,omitempty"`
}

func parseLedgerParams(r *http.Request, categoryKey string) (services.LedgerParams, error) {
	var params services.LedgerParams
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return params, err
	}
	var err error
	if params.Amount, err = p.Amount("amount"); err != nil {
		return params, err
	}
	if params.Date, err = p.Date("date"); err != nil {
		return params, err
	}
	params.Category = p.Get(categoryKey)
	if params.Category == "" {
		params.Category = p.Get("category")
	}
	params.Note = p.Get("note")
	return params, nil
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	params, err := parseLedgerParams(r, "category")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.Ledger.AddExpense(r.Context(), s.actor(r), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(e).Write(w)
}

// handleAddIncome accepts the income source as "source" or "category".
func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	params, err := parseLedgerParams(r, "source")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, suggestion, err := s.svc.Ledger.AddIncome(r.Context(), s.actor(r), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(incomeResponse{LedgerEntry: e, AutoSave: suggestion}).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	s.listLedger(w, r, core.LedgerExpenses)
}

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	s.listLedger(w, r, core.LedgerIncome)
}

func (s *Server) listLedger(w http.ResponseWriter, r *http.Request, kind core.LedgerKind) {
	month, err := ParseMonthParam(r.URL.Query(), s.svc.Budget.CurrentMonth())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.svc.Ledger.List(r.Context(), userID(r), kind, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	var total core.Money
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	NewJSONResponse().Body(ledgerListResponse{Month: month, Entries: entries, Total: total, Count: len(entries)}).Write(w)
}

// handleExpenseSummary breaks one month of expenses down by category and day.
func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), s.svc.Budget.CurrentMonth())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.svc.Ledger.ExpenseSummary(r.Context(), userID(r), month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}
