// Package markdown defines discount (markdown) policies and the
// repository contract for storing them and binding them to products.
package markdown

import (
	"context"
	"errors"
)

// Type identifies which discount algorithm a policy runs.
type Type string

const (
	// TypeDefault applies no discount.
	TypeDefault Type = "DEFAULT"
	// TypePercentage applies a fixed percentage discount.
	TypePercentage Type = "PERCENTAGE"
	// TypeCount applies a tiered discount based on basket quantity.
	TypeCount Type = "COUNT"
)

// Configuration carries the parameters for a policy. Exactly one field
// is set depending on the type; both are empty for DEFAULT.
type Configuration struct {
	Percentage *float64        `json:"percentage,omitempty"`
	Thresholds map[int]float64 `json:"thresholds,omitempty"`
}

// Specification is the storage-agnostic description of a policy's
// intent. It is used both to construct a policy and to describe an
// existing one.
type Specification struct {
	Type          Type          `json:"type"`
	Configuration Configuration `json:"configuration"`
}

// Validate reports whether the configuration matches the type.
func (s Specification) Validate() error {
	switch s.Type {
	case TypeDefault:
		return nil
	case TypePercentage:
		if s.Configuration.Percentage == nil {
			return ErrInvalidSpecification
		}
		return nil
	case TypeCount:
		if s.Configuration.Thresholds == nil {
			return ErrInvalidSpecification
		}
		return nil
	default:
		return ErrInvalidSpecification
	}
}

// Basket represents one pricing request: a product, its unit price and
// the quantity being bought.
type Basket struct {
	ProductID string
	UnitPrice float64
	Quantity  int
}

// Markdown is a stored policy paired with its identity.
type Markdown struct {
	ID     string
	Policy Policy
}

// Repository defines behavior for persisting markdowns and the
// product association index.
type Repository interface {
	// Create allocates a fresh id, builds a policy from the
	// specification and stores it.
	Create(ctx context.Context, spec Specification) (string, error)
	// Get retrieves a markdown by id.
	Get(ctx context.Context, id string) (Markdown, error)
	// List returns all stored markdowns, order unspecified.
	List(ctx context.Context) ([]Markdown, error)
	// Update replaces the stored policy for id.
	Update(ctx context.Context, id string, spec Specification) error
	// Delete removes the markdown by id. Associations pointing at it
	// are left in place; GetByProduct re-checks the policy and
	// degrades to ErrNotFound.
	Delete(ctx context.Context, id string) error
	// GetByProduct resolves the association index and returns the
	// markdown bound to the product.
	GetByProduct(ctx context.Context, productID string) (Markdown, error)
	// Associate upserts productID -> id for each given product. The
	// caller is responsible for checking that id exists.
	Associate(ctx context.Context, id string, productIDs []string) error
	// Dissociate removes the association entry for each given product,
	// regardless of which markdown it currently points at.
	Dissociate(ctx context.Context, id string, productIDs []string) error
}

// ErrNotFound indicates the requested markdown does not exist.
var ErrNotFound = errors.New("markdown not found")

// ErrTypeMismatch indicates an update tried to change the discount
// strategy of an existing markdown.
var ErrTypeMismatch = errors.New("markdown type mismatch")

// ErrInvalidSpecification indicates a specification whose configuration
// does not match its type.
var ErrInvalidSpecification = errors.New("invalid markdown specification")
