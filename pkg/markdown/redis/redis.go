// Package redis persists markdowns in Redis as specification JSON.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pricingflow/pkg/markdown"
)

const (
	markdownKeyPrefix    = "markdown:"
	associationKeyPrefix = "association:"
)

// Repository provides a Redis-backed implementation of
// markdown.Repository. Each markdown is a JSON specification under
// markdown:<id>; each association is a plain string under
// association:<productID>.
type Repository struct {
	client *redis.Client
}

// New creates a Redis repository.
func New(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Create stores a new markdown built from the specification.
func (r *Repository) Create(ctx context.Context, spec markdown.Specification) (string, error) {
	if _, err := markdown.NewPolicy(spec); err != nil {
		return "", err
	}
	id := uuid.NewString()
	b, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, markdownKeyPrefix+id, b, 0).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Get retrieves a markdown by id.
func (r *Repository) Get(ctx context.Context, id string) (markdown.Markdown, error) {
	raw, err := r.client.Get(ctx, markdownKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return markdown.Markdown{}, markdown.ErrNotFound
	}
	if err != nil {
		return markdown.Markdown{}, err
	}
	return decode(id, raw)
}

// List fetches all markdowns.
func (r *Repository) List(ctx context.Context) ([]markdown.Markdown, error) {
	var out []markdown.Markdown
	iter := r.client.Scan(ctx, 0, markdownKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		m, err := decode(key[len(markdownKeyPrefix):], raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces the stored specification for id.
func (r *Repository) Update(ctx context.Context, id string, spec markdown.Specification) error {
	if _, err := markdown.NewPolicy(spec); err != nil {
		return err
	}
	n, err := r.client.Exists(ctx, markdownKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return markdown.ErrNotFound
	}
	b, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, markdownKeyPrefix+id, b, 0).Err()
}

// Delete removes a markdown by id. Association keys pointing at it are
// left behind; GetByProduct re-checks the markdown key.
func (r *Repository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, markdownKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return markdown.ErrNotFound
	}
	return nil
}

// GetByProduct resolves the association key and loads the markdown.
func (r *Repository) GetByProduct(ctx context.Context, productID string) (markdown.Markdown, error) {
	id, err := r.client.Get(ctx, associationKeyPrefix+productID).Result()
	if err == redis.Nil {
		return markdown.Markdown{}, markdown.ErrNotFound
	}
	if err != nil {
		return markdown.Markdown{}, err
	}
	return r.Get(ctx, id)
}

// Associate upserts association keys for the given products.
func (r *Repository) Associate(ctx context.Context, id string, productIDs []string) error {
	for _, pid := range productIDs {
		if err := r.client.Set(ctx, associationKeyPrefix+pid, id, 0).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Dissociate removes association keys for the given products.
func (r *Repository) Dissociate(ctx context.Context, id string, productIDs []string) error {
	for _, pid := range productIDs {
		if err := r.client.Del(ctx, associationKeyPrefix+pid).Err(); err != nil {
			return err
		}
	}
	return nil
}

func decode(id string, raw []byte) (markdown.Markdown, error) {
	var spec markdown.Specification
	if err := json.Unmarshal(raw, &spec); err != nil {
		return markdown.Markdown{}, fmt.Errorf("decode markdown %s: %w", id, err)
	}
	p, err := markdown.NewPolicy(spec)
	if err != nil {
		return markdown.Markdown{}, err
	}
	return markdown.Markdown{ID: id, Policy: p}, nil
}
