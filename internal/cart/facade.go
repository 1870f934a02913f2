package cart

import (
	"context"

	"github.com/angelmondragon/packfinderz-storefront/internal/guest"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// guestPriceSentinel is what guest mode reports for the cart total: the
// ledger holds no price data and the facade must not reach for the network
// to compute one.
var guestPriceSentinel = decimal.Zero.StringFixed(2)

type sessionState interface {
	IsAuthenticated() bool
}

// Source is the cart representation currently in effect.
type Source interface {
	source()
}

// GuestSource wraps the pre-authentication ledger.
type GuestSource struct {
	Ledger *guest.Ledger
}

// AuthenticatedSource wraps the server-backed store.
type AuthenticatedSource struct {
	Store *Store
}

func (GuestSource) source()         {}
func (AuthenticatedSource) source() {}

// LineRef identifies a cart line from the UI's point of view: guest lines
// are keyed by product, authenticated lines by their server-assigned id. A
// row rendered from either representation carries both.
type LineRef struct {
	ItemID    int64
	ProductID int64
}

// Facade is the single entry point UI code calls. Every logical operation
// routes to the ledger or the store based on session state, so callers
// never branch on auth status themselves.
type Facade struct {
	sessions sessionState
	ledger   *guest.Ledger
	store    *Store
}

// NewFacade wires the facade over both cart representations.
func NewFacade(sessions sessionState, ledger *guest.Ledger, store *Store) (*Facade, error) {
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session state is required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest ledger is required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart store is required")
	}
	return &Facade{sessions: sessions, ledger: ledger, store: store}, nil
}

// Current returns the representation in effect for the session.
func (f *Facade) Current() Source {
	if f.sessions.IsAuthenticated() {
		return AuthenticatedSource{Store: f.store}
	}
	return GuestSource{Ledger: f.ledger}
}

// Add puts quantity units of the product into whichever cart is active.
func (f *Facade) Add(ctx context.Context, productID int64, quantity int) error {
	switch src := f.Current().(type) {
	case AuthenticatedSource:
		return src.Store.AddItem(ctx, productID, quantity)
	case GuestSource:
		return src.Ledger.Add(ctx, productID, quantity)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown cart source")
	}
}

// UpdateQuantity sets the quantity for the referenced line.
func (f *Facade) UpdateQuantity(ctx context.Context, ref LineRef, quantity int) error {
	switch src := f.Current().(type) {
	case AuthenticatedSource:
		return src.Store.UpdateItemQuantity(ctx, ref.ItemID, quantity)
	case GuestSource:
		return src.Ledger.SetQuantity(ctx, ref.ProductID, quantity)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown cart source")
	}
}

// Remove drops the referenced line.
func (f *Facade) Remove(ctx context.Context, ref LineRef) error {
	switch src := f.Current().(type) {
	case AuthenticatedSource:
		return src.Store.RemoveItem(ctx, ref.ItemID)
	case GuestSource:
		src.Ledger.Remove(ctx, ref.ProductID)
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown cart source")
	}
}

// Clear empties the active cart.
func (f *Facade) Clear(ctx context.Context) error {
	switch src := f.Current().(type) {
	case AuthenticatedSource:
		return src.Store.Clear(ctx)
	case GuestSource:
		src.Ledger.Clear(ctx)
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown cart source")
	}
}

// Refresh re-fetches server state. Guest mode has nothing to refresh.
func (f *Facade) Refresh(ctx context.Context) error {
	if src, ok := f.Current().(AuthenticatedSource); ok {
		return src.Store.Fetch(ctx)
	}
	return nil
}

// TotalQuantity returns the active cart's summed quantity.
func (f *Facade) TotalQuantity(ctx context.Context) int {
	switch src := f.Current().(type) {
	case AuthenticatedSource:
		return src.Store.TotalQuantity()
	case GuestSource:
		return src.Ledger.TotalQuantity(ctx)
	default:
		return 0
	}
}

// IsEmpty reports whether the active cart holds nothing.
func (f *Facade) IsEmpty(ctx context.Context) bool {
	switch src := f.Current().(type) {
	case AuthenticatedSource:
		return src.Store.IsEmpty()
	case GuestSource:
		return src.Ledger.IsEmpty(ctx)
	default:
		return true
	}
}

// HasProduct reports whether the active cart references the product.
func (f *Facade) HasProduct(ctx context.Context, productID int64) bool {
	switch src := f.Current().(type) {
	case AuthenticatedSource:
		return src.Store.HasProduct(productID)
	case GuestSource:
		return src.Ledger.Has(ctx, productID)
	default:
		return false
	}
}

// TotalPrice renders the active cart total. Guest carts hold no price data,
// so guest mode answers the "0.00" sentinel instead of calling anywhere.
func (f *Facade) TotalPrice(ctx context.Context) string {
	if src, ok := f.Current().(AuthenticatedSource); ok {
		return src.Store.TotalPrice()
	}
	return guestPriceSentinel
}
