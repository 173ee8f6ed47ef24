package markdown

import "testing"

func TestDefaultPolicyApply(t *testing.T) {
	p := DefaultPolicy()
	got := p.Apply(Basket{ProductID: "p1", UnitPrice: 2.5, Quantity: 4})
	if got != 10.0 {
		t.Fatalf("expected 10.0, got %v", got)
	}
}

func TestPercentagePolicyApply(t *testing.T) {
	cases := []struct {
		percentage float64
		expected   float64
	}{
		{10.0, 90.0},
		{50.0, 50.0},
		{75.0, 25.0},
	}
	for _, c := range cases {
		p, err := NewPolicy(Specification{
			Type:          TypePercentage,
			Configuration: Configuration{Percentage: &c.percentage},
		})
		if err != nil {
			t.Fatalf("new policy: %v", err)
		}
		got := p.Apply(Basket{ProductID: "p1", UnitPrice: 1.0, Quantity: 100})
		if got != c.expected {
			t.Fatalf("percentage %v: expected %v, got %v", c.percentage, c.expected, got)
		}
	}
}

func TestCountPolicyApply(t *testing.T) {
	thresholds := map[int]float64{40: 10.0, 50: 20.0, 70: 30.0, 80: 40.0}
	p, err := NewPolicy(Specification{
		Type:          TypeCount,
		Configuration: Configuration{Thresholds: thresholds},
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	cases := []struct {
		quantity int
		expected float64
	}{
		{39, 39.0},
		{40, 36.0},
		{45, 40.5},
		{50, 40.0},
		{70, 49.0},
		{80, 48.0},
		{90, 54.0},
	}
	for _, c := range cases {
		got := p.Apply(Basket{ProductID: "p1", UnitPrice: 1.0, Quantity: c.quantity})
		if got != c.expected {
			t.Fatalf("quantity %d: expected %v, got %v", c.quantity, c.expected, got)
		}
	}
}

func TestCountPolicyEmptyThresholds(t *testing.T) {
	p, err := NewPolicy(Specification{
		Type:          TypeCount,
		Configuration: Configuration{Thresholds: map[int]float64{}},
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	got := p.Apply(Basket{ProductID: "p1", UnitPrice: 3.0, Quantity: 7})
	if got != 21.0 {
		t.Fatalf("expected full price 21.0, got %v", got)
	}
}

func TestNewPolicyRejectsMismatchedConfiguration(t *testing.T) {
	if _, err := NewPolicy(Specification{Type: TypePercentage}); err != ErrInvalidSpecification {
		t.Fatalf("expected ErrInvalidSpecification, got %v", err)
	}
	if _, err := NewPolicy(Specification{Type: TypeCount}); err != ErrInvalidSpecification {
		t.Fatalf("expected ErrInvalidSpecification, got %v", err)
	}
	if _, err := NewPolicy(Specification{Type: "BOGUS"}); err != ErrInvalidSpecification {
		t.Fatalf("expected ErrInvalidSpecification, got %v", err)
	}
}

func TestDescribeRoundTrip(t *testing.T) {
	pct := 25.0
	specs := []Specification{
		{Type: TypeDefault},
		{Type: TypePercentage, Configuration: Configuration{Percentage: &pct}},
		{Type: TypeCount, Configuration: Configuration{Thresholds: map[int]float64{10: 5.0, 20: 15.0}}},
	}
	baskets := []Basket{
		{ProductID: "p1", UnitPrice: 1.0, Quantity: 1},
		{ProductID: "p1", UnitPrice: 2.5, Quantity: 15},
		{ProductID: "p1", UnitPrice: 9.99, Quantity: 100},
	}
	for _, spec := range specs {
		p, err := NewPolicy(spec)
		if err != nil {
			t.Fatalf("new policy: %v", err)
		}
		desc := p.Describe()
		if desc.Type != spec.Type {
			t.Fatalf("describe type: expected %s, got %s", spec.Type, desc.Type)
		}
		rebuilt, err := NewPolicy(desc)
		if err != nil {
			t.Fatalf("rebuild from describe: %v", err)
		}
		for _, b := range baskets {
			if p.Apply(b) != rebuilt.Apply(b) {
				t.Fatalf("%s: round-trip policy prices differ for basket %+v", spec.Type, b)
			}
		}
	}
}
