package guest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// ErrNotFound is returned by a KV when no value exists under the key.
var ErrNotFound = errors.New("guest: key not found")

// KV is the persistence slot backing the guest ledger. The browser original
// used a single local-storage key; native hosts plug in sqlite or redis.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

// Entry is one guest cart line. The ledger keeps at most one entry per
// product; adding an existing product increments its quantity.
type Entry struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Ledger is the pre-authentication cart. It is the only cart representation
// that exists before login, lives entirely client-side, and persists the
// full entry list after every mutation.
type Ledger struct {
	kv   KV
	key  string
	logg *logger.Logger

	mu      sync.Mutex
	entries []Entry
	loaded  bool
}

// NewLedger builds a ledger persisted under the given storage key.
func NewLedger(kv KV, key string, logg *logger.Logger) (*Ledger, error) {
	if kv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger storage is required")
	}
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger key is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Ledger{kv: kv, key: key, logg: logg}, nil
}

// Add increments the quantity for the product, appending a new entry for
// first-time products.
func (l *Ledger) Add(ctx context.Context, productID int64, quantity int) error {
	if productID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)

	if idx := l.indexOf(productID); idx >= 0 {
		l.entries[idx].Quantity += quantity
	} else {
		l.entries = append(l.entries, Entry{ProductID: productID, Quantity: quantity})
	}
	l.persist(ctx)
	return nil
}

// SetQuantity sets the quantity directly; zero or less removes the entry.
func (l *Ledger) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	if productID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)

	idx := l.indexOf(productID)
	switch {
	case quantity <= 0 && idx >= 0:
		l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	case quantity <= 0:
		return nil
	case idx >= 0:
		l.entries[idx].Quantity = quantity
	default:
		l.entries = append(l.entries, Entry{ProductID: productID, Quantity: quantity})
	}
	l.persist(ctx)
	return nil
}

// Remove drops the entry for the product if present.
func (l *Ledger) Remove(ctx context.Context, productID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)

	idx := l.indexOf(productID)
	if idx < 0 {
		return
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	l.persist(ctx)
}

// Clear empties the ledger in full. Never called partially; the reconciler
// invokes it only after a confirmed merge.
func (l *Ledger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	l.loaded = true
	if err := l.kv.Del(ctx, l.key); err != nil && !errors.Is(err, ErrNotFound) {
		l.logg.Warn(l.logg.WithField(ctx, "key", l.key), "clearing guest cart storage failed")
	}
}

// Entries returns a copy of the current ledger.
func (l *Ledger) Entries(ctx context.Context) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// IsEmpty reports whether the ledger holds no entries.
func (l *Ledger) IsEmpty(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)
	return len(l.entries) == 0
}

// TotalQuantity sums quantities across all entries.
func (l *Ledger) TotalQuantity(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)

	total := 0
	for _, entry := range l.entries {
		total += entry.Quantity
	}
	return total
}

// Has reports whether the product is present in the ledger.
func (l *Ledger) Has(ctx context.Context, productID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load(ctx)
	return l.indexOf(productID) >= 0
}

func (l *Ledger) indexOf(productID int64) int {
	for i, entry := range l.entries {
		if entry.ProductID == productID {
			return i
		}
	}
	return -1
}

// load hydrates the in-memory ledger once. Missing, corrupt, or unreadable
// storage all read as an empty ledger, never as a fatal error.
func (l *Ledger) load(ctx context.Context) {
	if l.loaded {
		return
	}
	l.loaded = true

	raw, err := l.kv.Get(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "key", l.key), "guest cart storage unavailable, starting empty")
		return
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "key", l.key), "guest cart storage corrupted, starting empty")
		return
	}
	l.entries = dedupe(entries)
}

// persist writes the full ledger. A write failure is logged and swallowed:
// the in-memory state keeps the attempted change for the current session.
func (l *Ledger) persist(ctx context.Context) {
	raw, err := json.Marshal(l.entries)
	if err != nil {
		l.logg.Error(ctx, "encode guest cart", err)
		return
	}
	if err := l.kv.Set(ctx, l.key, string(raw)); err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "key", l.key), "persisting guest cart failed, keeping in-memory state")
	}
}

// dedupe folds duplicate product rows from storage into single entries,
// preserving first-seen order.
func dedupe(entries []Entry) []Entry {
	seen := make(map[int64]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.ProductID <= 0 || entry.Quantity < 1 {
			continue
		}
		if idx, ok := seen[entry.ProductID]; ok {
			out[idx].Quantity += entry.Quantity
			continue
		}
		seen[entry.ProductID] = len(out)
		out = append(out, entry)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
