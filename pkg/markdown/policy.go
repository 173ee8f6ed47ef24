package markdown

import "sort"

// breakpoint is one quantity tier of a COUNT policy.
type breakpoint struct {
	quantity   int
	percentage float64
}

// Policy is a discount algorithm plus its parameters. The zero value
// is not usable; construct policies with NewPolicy or DefaultPolicy.
type Policy struct {
	kind       Type
	percentage float64
	// sorted ascending by quantity, COUNT only
	breakpoints []breakpoint
}

// NewPolicy builds a policy from a specification. It returns
// ErrInvalidSpecification when the configuration does not match the
// type; callers are expected to validate before constructing.
func NewPolicy(spec Specification) (Policy, error) {
	if err := spec.Validate(); err != nil {
		return Policy{}, err
	}
	switch spec.Type {
	case TypePercentage:
		return Policy{kind: TypePercentage, percentage: *spec.Configuration.Percentage}, nil
	case TypeCount:
		bps := make([]breakpoint, 0, len(spec.Configuration.Thresholds))
		for q, p := range spec.Configuration.Thresholds {
			bps = append(bps, breakpoint{quantity: q, percentage: p})
		}
		sort.Slice(bps, func(i, j int) bool { return bps[i].quantity < bps[j].quantity })
		return Policy{kind: TypeCount, breakpoints: bps}, nil
	default:
		return Policy{kind: TypeDefault}, nil
	}
}

// DefaultPolicy returns the neutral policy applied to products with no
// markdown bound.
func DefaultPolicy() Policy {
	return Policy{kind: TypeDefault}
}

// Apply computes the discounted total for the basket.
func (p Policy) Apply(b Basket) float64 {
	full := b.UnitPrice * float64(b.Quantity)
	discount := full * p.discountPercentage(b.Quantity) / 100
	return full - discount
}

// discountPercentage resolves the percentage for the given quantity.
// For COUNT the greatest breakpoint less than or equal to the quantity
// wins; no qualifying breakpoint means no discount.
func (p Policy) discountPercentage(quantity int) float64 {
	switch p.kind {
	case TypePercentage:
		return p.percentage
	case TypeCount:
		var pct float64
		for _, bp := range p.breakpoints {
			if bp.quantity > quantity {
				break
			}
			pct = bp.percentage
		}
		return pct
	default:
		return 0
	}
}

// Describe reconstructs the specification that would recreate this
// policy.
func (p Policy) Describe() Specification {
	switch p.kind {
	case TypePercentage:
		pct := p.percentage
		return Specification{
			Type:          TypePercentage,
			Configuration: Configuration{Percentage: &pct},
		}
	case TypeCount:
		thresholds := make(map[int]float64, len(p.breakpoints))
		for _, bp := range p.breakpoints {
			thresholds[bp.quantity] = bp.percentage
		}
		return Specification{
			Type:          TypeCount,
			Configuration: Configuration{Thresholds: thresholds},
		}
	default:
		return Specification{Type: TypeDefault}
	}
}
