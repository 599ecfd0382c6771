package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	"github.com/FACorreiaa/budget-importer/internal/domain/import/mapper"
	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
)

// categorizationAdapter adapts categorization.Service to import's Suggester
// interface. Each call is bounded by timeout.
type categorizationAdapter struct {
	svc     *categorization.Service
	timeout time.Duration
}

// newCategorizationAdapter creates a new adapter
func newCategorizationAdapter(svc *categorization.Service, timeout time.Duration) importservice.Suggester {
	return &categorizationAdapter{svc: svc, timeout: timeout}
}

// Suggest implements importservice.Suggester
func (a *categorizationAdapter) Suggest(ctx context.Context, budgetID uuid.UUID, txs []mapper.MappedTransaction) ([]*categorization.Suggestion, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.svc.Suggest(ctx, budgetID, txs)
}
