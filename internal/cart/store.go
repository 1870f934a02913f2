package cart

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/angelmondragon/packfinderz-storefront/internal/guest"
	"github.com/angelmondragon/packfinderz-storefront/internal/rest"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

type apiClient interface {
	Do(ctx context.Context, req rest.Request) error
}

// Store holds the authenticated cart snapshot and performs every mutation
// against the backend. Local state always reflects the last server response
// that arrived: overlapping calls are not sequenced, so among concurrent
// mutations the last-resolved response wins. The mutex below orders the
// snapshot replacement, not the requests.
type Store struct {
	api  apiClient
	logg *logger.Logger

	mu       sync.Mutex
	snapshot Snapshot
	fetched  bool
	lastErr  string
}

// NewStore builds a cart store over the shared API client.
func NewStore(api apiClient, logg *logger.Logger) (*Store, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "api client is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Store{
		api:      api,
		logg:     logg,
		snapshot: EmptySnapshot(),
	}, nil
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	Items []guest.Entry `json:"items"`
}

// Fetch loads the current snapshot. A failed fetch keeps whatever snapshot
// is already held: stale-but-present beats empty.
func (s *Store) Fetch(ctx context.Context) error {
	var snapshot Snapshot
	err := s.api.Do(ctx, rest.Request{
		Name:   "cart.fetch",
		Method: http.MethodGet,
		Path:   "/cart",
		Out:    &snapshot,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	s.apply(ctx, snapshot)
	return nil
}

// AddItem adds quantity units of the product. The server merges quantities
// if the product is already in the cart and answers with the full snapshot.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int) error {
	if productID <= 0 {
		return s.fail(ctx, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
	}
	if quantity < 1 {
		return s.fail(ctx, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1"))
	}

	var snapshot Snapshot
	err := s.api.Do(ctx, rest.Request{
		Name:   "cart.add_item",
		Method: http.MethodPost,
		Path:   "/cart/items",
		Body:   addItemRequest{ProductID: productID, Quantity: quantity},
		Out:    &snapshot,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	s.apply(ctx, snapshot)
	return nil
}

// UpdateItemQuantity sets the quantity of an existing line. Quantities of
// zero or less delegate to RemoveItem. Stale line ids are sent as-is; the
// server decides what "not found" means.
func (s *Store) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}

	var snapshot Snapshot
	err := s.api.Do(ctx, rest.Request{
		Name:   "cart.update_item",
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/cart/items/%d", itemID),
		Body:   updateItemRequest{Quantity: quantity},
		Out:    &snapshot,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	s.apply(ctx, snapshot)
	return nil
}

// RemoveItem deletes a line. Removing a line the server no longer has is
// treated as already removed; the local snapshot stays as-is until the next
// fetch resyncs it.
func (s *Store) RemoveItem(ctx context.Context, itemID int64) error {
	var snapshot Snapshot
	err := s.api.Do(ctx, rest.Request{
		Name:   "cart.remove_item",
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/cart/items/%d", itemID),
		Out:    &snapshot,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.logg.Warn(s.logg.WithField(ctx, "item_id", itemID), "removing absent cart line, treating as removed")
			s.clearError()
			return nil
		}
		return s.fail(ctx, err)
	}
	s.apply(ctx, snapshot)
	return nil
}

// Clear empties the entire cart.
func (s *Store) Clear(ctx context.Context) error {
	var snapshot Snapshot
	err := s.api.Do(ctx, rest.Request{
		Name:   "cart.clear",
		Method: http.MethodDelete,
		Path:   "/cart",
		Out:    &snapshot,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	s.apply(ctx, snapshot)
	return nil
}

// Validate asks the server to check the cart against live stock and prices.
// Reported adjustments update the aggregate totals only; individual lines
// keep their last-fetched prices until the next full fetch. That staleness
// window is part of the contract, not an accident.
func (s *Store) Validate(ctx context.Context) (ValidationResult, error) {
	var result ValidationResult
	err := s.api.Do(ctx, rest.Request{
		Name:   "cart.validate",
		Method: http.MethodPost,
		Path:   "/cart/validate",
		Out:    &result,
	})
	if err != nil {
		return ValidationResult{}, s.fail(ctx, err)
	}

	if result.Summary != nil {
		s.mu.Lock()
		s.snapshot.Totals = *result.Summary
		s.lastErr = ""
		s.mu.Unlock()
	} else {
		s.clearError()
	}
	return result, nil
}

// Merge folds guest entries into the server cart. The server combines
// quantities with any pre-existing lines; the client never pre-computes the
// merged result.
func (s *Store) Merge(ctx context.Context, entries []guest.Entry) error {
	if len(entries) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "merge requires at least one entry")
	}

	var snapshot Snapshot
	err := s.api.Do(ctx, rest.Request{
		Name:   "cart.merge",
		Method: http.MethodPost,
		Path:   "/cart/merge",
		Body:   mergeRequest{Items: entries},
		Out:    &snapshot,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	s.apply(ctx, snapshot)
	return nil
}

// Snapshot returns a copy of the last applied snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Err returns the user-facing message of the last failed operation, empty
// after a success.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Fetched reports whether at least one server snapshot has been applied.
func (s *Store) Fetched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

// TotalQuantity returns the aggregate quantity of the held snapshot.
func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Totals.TotalQuantity
}

// TotalPrice renders the held total as a decimal string.
func (s *Store) TotalPrice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Totals.TotalPrice.StringFixed(2)
}

// IsEmpty reports the held snapshot's empty flag.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Totals.IsEmpty
}

// HasProduct reports whether the held snapshot references the product.
func (s *Store) HasProduct(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.HasProduct(productID)
}

// apply replaces the snapshot wholesale with a server response.
func (s *Store) apply(ctx context.Context, snapshot Snapshot) {
	if err := snapshot.Verify(); err != nil {
		// Server stays authoritative; record the drift and apply anyway.
		s.logg.Warn(s.logg.WithField(ctx, "violations", err.Error()), "snapshot violates cart invariants")
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.fetched = true
	s.lastErr = ""
	s.mu.Unlock()
}

// fail records a user-facing error message and keeps the prior snapshot.
func (s *Store) fail(ctx context.Context, err error) error {
	message := pkgerrors.UserMessage(err)

	s.mu.Lock()
	s.lastErr = message
	s.mu.Unlock()

	s.logg.Error(ctx, "cart operation failed", err)
	return err
}

func (s *Store) clearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}
