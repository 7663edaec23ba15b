package http

import (
	"context"
	"net/http"

	"spendy/internal/core"
	applog "spendy/internal/log"
	"spendy/internal/services"
	"spendy/internal/storage"
)

type plansResponse struct {
	Plans []core.SavingsPlan `json:"plans"`
	Count int                `json:"count"`
}

type depositResponse struct {
	NewAmount     core.Money `json:"new_amount"`
	TransactionID string     `json:"transaction_id"`
	Reactivated   bool       `json:"reactivated"`
	FundSource    string     `json:"fund_source"`
}

type withdrawResponse struct {
	NewAmount     core.Money `json:"new_amount"`
	TransactionID string     `json:"transaction_id"`
	FundSource    string     `json:"fund_source"`
}

type transactionsResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}

	params, err := parseCreatePlan(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	plan, err := s.svc.Savings.CreatePlan(r.Context(), s.actor(r), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(plan).Write(w)
}

func parseCreatePlan(p *RequestBodyParser) (services.CreatePlanParams, error) {
	var (
		params services.CreatePlanParams
		err    error
	)
	params.Name = p.Get("plan_name")
	if params.Goal, err = p.Amount("goal_amount"); err != nil {
		return params, err
	}
	if params.StartDate, err = p.Date("start_date"); err != nil {
		return params, err
	}
	if params.EndDate, err = p.Date("end_date"); err != nil {
		return params, err
	}
	if params.Locked, err = p.Bool("is_locked"); err != nil {
		return params, err
	}
	budget, err := p.OptionalAmount("monthly_budget")
	if err != nil {
		return params, err
	}
	if budget != nil {
		params.MonthlyBudget = *budget
	}
	return params, nil
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	s.listPlans(w, r, false)
}

func (s *Server) handleListEndedPlans(w http.ResponseWriter, r *http.Request) {
	s.listPlans(w, r, true)
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request, ended bool) {
	plans, err := s.svc.Savings.ListPlans(r.Context(), userID(r), ended)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plans == nil {
		plans = []core.SavingsPlan{}
	}
	NewJSONResponse().Body(plansResponse{Plans: plans, Count: len(plans)}).Write(w)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := planID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.svc.Savings.GetPlan(r.Context(), userID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(plan).Write(w)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := planID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}

	params, err := parseUpdatePlan(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	plan, err := s.svc.Savings.UpdatePlan(r.Context(), s.actor(r), id, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(plan).Write(w)
}

// parseUpdatePlan only sets the fields present in the body.
func parseUpdatePlan(p *RequestBodyParser) (services.UpdatePlanParams, error) {
	var params services.UpdatePlanParams
	if p.Has("plan_name") {
		name := p.Get("plan_name")
		params.Name = &name
	}
	if p.Has("goal_amount") {
		goal, err := p.Amount("goal_amount")
		if err != nil {
			return params, err
		}
		params.Goal = &goal
	}
	for key, dst := range map[string]**core.Date{"start_date": &params.StartDate, "end_date": &params.EndDate} {
		if !p.Has(key) {
			continue
		}
		d, err := p.Date(key)
		if err != nil {
			return params, err
		}
		*dst = &d
	}
	if p.Has("is_locked") {
		locked, err := p.Bool("is_locked")
		if err != nil {
			return params, err
		}
		params.Locked = &locked
	}
	if p.Has("monthly_budget") {
		budget, err := p.OptionalAmount("monthly_budget")
		if err != nil {
			return params, err
		}
		if budget == nil {
			budget = &core.Money{}
		}
		params.MonthlyBudget = budget
	}
	if p.Has("status") {
		status := core.PlanStatus(p.Get("status"))
		params.Status = &status
	}
	return params, nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.deposit(w, r, s.svc.Savings.Deposit)
}

// handleAutoSave moves part of an income into a plan.
func (s *Server) handleAutoSave(w http.ResponseWriter, r *http.Request) {
	s.deposit(w, r, s.svc.Savings.AutoSave)
}

type depositFunc func(context.Context, core.Actor, services.TransactionParams) (storage.TransactionResult, error)

func (s *Server) deposit(w http.ResponseWriter, r *http.Request, apply depositFunc) {
	params, err := s.parseTransaction(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := apply(r.Context(), s.actor(r), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logTransaction(r, applog.OpDeposit, res.Plan, res.Transaction)
	NewJSONResponse().Body(depositResponse{
		NewAmount:     res.Plan.Saved,
		TransactionID: res.Transaction.DisplayID(),
		Reactivated:   res.Reactivated,
		FundSource:    res.Transaction.FundSource,
	}).Write(w)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseTransaction(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Savings.Withdraw(r.Context(), s.actor(r), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logTransaction(r, applog.OpWithdraw, res.Plan, res.Transaction)
	NewJSONResponse().Body(withdrawResponse{
		NewAmount:     res.Plan.Saved,
		TransactionID: res.Transaction.DisplayID(),
		FundSource:    res.Transaction.FundSource,
	}).Write(w)
}

// parseTransaction reads the body shared by deposit and withdraw. The
// reactivate flag is passed through on both so a withdrawal asking for it is
// rejected by the engine.
func (s *Server) parseTransaction(r *http.Request) (services.TransactionParams, error) {
	var params services.TransactionParams
	if userID(r) == "" {
		return params, core.ErrUnauthenticated
	}
	id, err := planID(r)
	if err != nil {
		return params, err
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return params, err
	}
	if params.Amount, err = p.Amount("amount"); err != nil {
		return params, err
	}
	if params.Reactivate, err = p.Bool("reactivate"); err != nil {
		return params, err
	}
	params.PlanID = id
	params.FundSource = p.Get("fund_source")
	return params, nil
}

func (s *Server) logTransaction(r *http.Request, op string, plan core.SavingsPlan, txn core.Transaction) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogTransaction(r.Context(), op,
		plan.UserID, plan.DisplayID(), txn.DisplayID(), txn.Amount.String(), txn.FundSource)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := planID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txns, err := s.svc.Savings.ListTransactions(r.Context(), userID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	NewJSONResponse().Body(transactionsResponse{Transactions: txns, Count: len(txns)}).Write(w)
}
