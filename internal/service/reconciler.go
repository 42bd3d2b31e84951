package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"labtable/internal/domain"
	"labtable/internal/port"
)

// Discrepancy describes an account whose net extraction charge does not match
// the artifacts it received.
type Discrepancy struct {
	AccountID string `json:"account_id"`
	Debited   int64  `json:"debited"`
	Refunded  int64  `json:"refunded"`
	Artifacts int64  `json:"artifacts"`
	// Expected is Artifacts times the extraction cost; Debited - Refunded should equal it.
	Expected int64 `json:"expected"`
}

// Net is what the account was effectively charged in the window.
func (d Discrepancy) Net() int64 { return d.Debited - d.Refunded }

// Reconciler cross-checks the usage log against the artifact table. It only
// reports; nothing is corrected automatically.
type Reconciler struct {
	logs      port.UsageLogRepository
	artifacts port.ArtifactRepository
	cost      int64
}

// NewReconciler creates a Reconciler for the given per-extraction cost.
func NewReconciler(logs port.UsageLogRepository, artifacts port.ArtifactRepository, cost int64) *Reconciler {
	if cost <= 0 {
		cost = 1
	}
	return &Reconciler{logs: logs, artifacts: artifacts, cost: cost}
}

// Reconcile returns the accounts whose charges in [since, until) disagree with
// the number of artifacts created in the same window. The window must lie
// within artifact retention, otherwise swept artifacts show up as overcharges.
func (r *Reconciler) Reconcile(ctx context.Context, since, until time.Time) ([]Discrepancy, error) {
	totals, err := r.logs.SummarizeByAction(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("reconcile: summarizing log: %w", err)
	}
	counts, err := r.artifacts.CountCreatedByAccount(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("reconcile: counting artifacts: %w", err)
	}

	byAccount := make(map[string]*Discrepancy)
	get := func(id string) *Discrepancy {
		d, ok := byAccount[id]
		if !ok {
			d = &Discrepancy{AccountID: id}
			byAccount[id] = d
		}
		return d
	}
	for _, t := range totals {
		switch t.Action {
		case domain.ActionExtract:
			get(t.AccountID).Debited += -t.Sum
		case domain.ActionRefund:
			get(t.AccountID).Refunded += t.Sum
		}
	}
	for id, n := range counts {
		d := get(id)
		d.Artifacts = n
	}

	var out []Discrepancy
	for _, d := range byAccount {
		d.Expected = d.Artifacts * r.cost
		if d.Net() != d.Expected {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}
