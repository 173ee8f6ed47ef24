// Package memory implements an in-memory markdown repository.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pricingflow/pkg/markdown"
)

// Repository provides an in-memory implementation of
// markdown.Repository. Policies and the product association index are
// plain maps guarded by a single mutex.
type Repository struct {
	mu           sync.RWMutex
	policies     map[string]markdown.Policy
	associations map[string]string
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		policies:     make(map[string]markdown.Policy),
		associations: make(map[string]string),
	}
}

// Create builds a policy from the specification and stores it under a
// fresh id.
func (r *Repository) Create(ctx context.Context, spec markdown.Specification) (string, error) {
	p, err := markdown.NewPolicy(spec)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[id] = p
	return id, nil
}

// Get retrieves a markdown by id.
func (r *Repository) Get(ctx context.Context, id string) (markdown.Markdown, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[id]
	if !ok {
		return markdown.Markdown{}, markdown.ErrNotFound
	}
	return markdown.Markdown{ID: id, Policy: p}, nil
}

// List returns all stored markdowns.
func (r *Repository) List(ctx context.Context) ([]markdown.Markdown, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]markdown.Markdown, 0, len(r.policies))
	for id, p := range r.policies {
		out = append(out, markdown.Markdown{ID: id, Policy: p})
	}
	return out, nil
}

// Update replaces the stored policy for id.
func (r *Repository) Update(ctx context.Context, id string, spec markdown.Specification) error {
	p, err := markdown.NewPolicy(spec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[id]; !ok {
		return markdown.ErrNotFound
	}
	r.policies[id] = p
	return nil
}

// Delete removes a markdown by id. Association entries pointing at the
// deleted id are left behind; GetByProduct re-checks the policy map, so
// an orphaned association degrades to ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[id]; !ok {
		return markdown.ErrNotFound
	}
	delete(r.policies, id)
	return nil
}

// GetByProduct resolves the association index and returns the bound
// markdown.
func (r *Repository) GetByProduct(ctx context.Context, productID string) (markdown.Markdown, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.associations[productID]
	if !ok {
		return markdown.Markdown{}, markdown.ErrNotFound
	}
	p, ok := r.policies[id]
	if !ok {
		return markdown.Markdown{}, markdown.ErrNotFound
	}
	return markdown.Markdown{ID: id, Policy: p}, nil
}

// Associate upserts productID -> id for each given product.
func (r *Repository) Associate(ctx context.Context, id string, productIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pid := range productIDs {
		r.associations[pid] = id
	}
	return nil
}

// Dissociate removes the association entry for each given product. It
// does not check which markdown the entries currently point at.
func (r *Repository) Dissociate(ctx context.Context, id string, productIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pid := range productIDs {
		delete(r.associations, pid)
	}
	return nil
}
