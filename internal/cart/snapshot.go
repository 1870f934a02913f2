package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// LineItem is one server-assigned cart line. Lines are never edited in
// place; the owning Snapshot is replaced wholesale.
type LineItem struct {
	ID        int64           `json:"id" validate:"required"`
	ProductID int64           `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Totals carries the server-computed aggregates for a cart.
type Totals struct {
	TotalItems    int             `json:"totalItems" validate:"gte=0"`
	TotalQuantity int             `json:"totalQuantity" validate:"gte=0"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	IsEmpty       bool            `json:"isEmpty"`
}

// Snapshot is the authoritative state of an authenticated cart as last
// confirmed by the server.
type Snapshot struct {
	Items  []LineItem `json:"items"`
	Totals Totals     `json:"totals"`
}

// ValidationResult is the outcome of a server-side stock/price check.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
	Summary *Totals  `json:"cartSummary,omitempty"`
}

// EmptySnapshot returns the canonical empty cart.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Totals: Totals{IsEmpty: true},
	}
}

// Verify checks the cross-field invariants the server promises. Violations
// are reported for telemetry; the server response is still applied.
func (s Snapshot) Verify() error {
	var err error

	if s.Totals.IsEmpty != (len(s.Items) == 0) {
		err = multierr.Append(err, fmt.Errorf("isEmpty=%v with %d items", s.Totals.IsEmpty, len(s.Items)))
	}

	quantity := 0
	seen := make(map[int64]struct{}, len(s.Items))
	for _, item := range s.Items {
		quantity += item.Quantity
		if item.Quantity < 1 {
			err = multierr.Append(err, fmt.Errorf("line %d has quantity %d", item.ID, item.Quantity))
		}
		if _, dup := seen[item.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("duplicate line id %d", item.ID))
		}
		seen[item.ID] = struct{}{}

		expected := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if !item.LineTotal.Equal(expected) {
			err = multierr.Append(err, fmt.Errorf("line %d total %s != %s", item.ID, item.LineTotal, expected))
		}
	}
	if s.Totals.TotalQuantity != quantity {
		err = multierr.Append(err, fmt.Errorf("totalQuantity %d != summed %d", s.Totals.TotalQuantity, quantity))
	}
	if s.Totals.TotalPrice.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("negative totalPrice %s", s.Totals.TotalPrice))
	}

	return err
}

// Clone returns a value copy with its own items slice.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Items != nil {
		out.Items = make([]LineItem, len(s.Items))
		copy(out.Items, s.Items)
	}
	return out
}

// HasProduct reports whether any line references the product.
func (s Snapshot) HasProduct(productID int64) bool {
	for _, item := range s.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
