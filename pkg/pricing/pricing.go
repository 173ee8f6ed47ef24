// Package pricing orchestrates the markdown store and the policy
// engine: it computes basket prices and enforces the markdown
// lifecycle rules.
package pricing

import (
	"context"
	"errors"

	"pricingflow/pkg/markdown"
)

// Service computes prices and manages markdown lifecycle.
type Service struct {
	repo markdown.Repository
}

// New creates a pricing service backed by the given repository.
func New(repo markdown.Repository) *Service {
	return &Service{repo: repo}
}

// CalculatePrice computes the discounted total for the basket using
// the markdown bound to its product, or the default policy when none
// is bound.
func (s *Service) CalculatePrice(ctx context.Context, b markdown.Basket) (float64, error) {
	m, err := s.repo.GetByProduct(ctx, b.ProductID)
	if errors.Is(err, markdown.ErrNotFound) {
		return markdown.DefaultPolicy().Apply(b), nil
	}
	if err != nil {
		return 0, err
	}
	return m.Policy.Apply(b), nil
}

// CreatePolicy stores a new markdown built from the specification.
func (s *Service) CreatePolicy(ctx context.Context, spec markdown.Specification) (string, error) {
	return s.repo.Create(ctx, spec)
}

// RetrievePolicy fetches a markdown by id.
func (s *Service) RetrievePolicy(ctx context.Context, id string) (markdown.Markdown, error) {
	return s.repo.Get(ctx, id)
}

// RetrieveAllPolicies returns all stored markdowns.
func (s *Service) RetrieveAllPolicies(ctx context.Context) ([]markdown.Markdown, error) {
	return s.repo.List(ctx)
}

// UpdatePolicy replaces the parameters of an existing markdown. The
// update is type-locked: a specification whose type differs from the
// stored policy's type is refused with ErrTypeMismatch, so an update
// can tune parameters but never switch the discount strategy.
func (s *Service) UpdatePolicy(ctx context.Context, id string, spec markdown.Specification) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Policy.Describe().Type != spec.Type {
		return markdown.ErrTypeMismatch
	}
	return s.repo.Update(ctx, id, spec)
}

// DeletePolicy removes a markdown by id.
func (s *Service) DeletePolicy(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AssociateProducts binds the given products to the markdown. It is
// gated on the markdown existing and performs no mutation otherwise.
func (s *Service) AssociateProducts(ctx context.Context, id string, productIDs []string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Associate(ctx, id, productIDs)
}

// DissociateProducts removes the association entries for the given
// products. Like AssociateProducts it is gated on the markdown id, not
// on whether the products were actually associated with it.
func (s *Service) DissociateProducts(ctx context.Context, id string, productIDs []string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Dissociate(ctx, id, productIDs)
}
