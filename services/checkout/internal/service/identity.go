package service

import (
	"context"
	"errors"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
	"github.com/google/uuid"
)

// Identity names whose cart an operation targets. A customer id wins over a
// guest token when both are set.
type Identity struct {
	CustomerID *uuid.UUID
	GuestToken string
}

func Customer(id uuid.UUID) Identity {
	return Identity{CustomerID: &id}
}

func Guest(token string) Identity {
	return Identity{GuestToken: token}
}

func (i Identity) IsCustomer() bool {
	return i.CustomerID != nil && *i.CustomerID != uuid.Nil
}

func (i Identity) validate() error {
	if !i.IsCustomer() && i.GuestToken == "" {
		return invalid("customer id or guest token required")
	}
	return nil
}

func findOpenQuote(ctx context.Context, r *repo.GormRepo, id Identity) (*models.Quote, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}
	var (
		q   *models.Quote
		err error
	)
	if id.IsCustomer() {
		q, err = r.FindOpenQuoteByCustomer(ctx, *id.CustomerID)
	} else {
		q, err = r.FindOpenQuoteByGuest(ctx, id.GuestToken)
	}
	if err != nil {
		return nil, mapStoreErr(err, "find cart")
	}
	return q, nil
}

// findOrCreateQuote returns the identity's open quote, creating it on first use.
func findOrCreateQuote(ctx context.Context, r *repo.GormRepo, id Identity) (*models.Quote, error) {
	q, err := findOpenQuote(ctx, r, id)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return q, err
	}

	q = &models.Quote{}
	if id.IsCustomer() {
		cid := *id.CustomerID
		q.CustomerID = &cid
	} else {
		token := id.GuestToken
		q.GuestToken = &token
	}
	err = r.CreateQuote(ctx, q)
	if errors.Is(err, repo.ErrDuplicate) {
		// lost the race against a concurrent first mutation
		return findOpenQuote(ctx, r, id)
	}
	if err != nil {
		return nil, mapStoreErr(err, "create cart")
	}
	return q, nil
}
