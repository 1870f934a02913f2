package guest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestLedger(t *testing.T, kv KV) *Ledger {
	t.Helper()
	ledger, err := NewLedger(kv, "pf:guest_cart", testLogger())
	require.NoError(t, err)
	return ledger
}

func TestLedgerAddKeepsOneEntryPerProduct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger := newTestLedger(t, NewMemoryKV())

	require.NoError(t, ledger.Add(ctx, 42, 2))
	require.NoError(t, ledger.Add(ctx, 7, 1))
	require.NoError(t, ledger.Add(ctx, 42, 3))

	entries := ledger.Entries(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ProductID: 42, Quantity: 5}, entries[0])
	assert.Equal(t, Entry{ProductID: 7, Quantity: 1}, entries[1])
	assert.Equal(t, 6, ledger.TotalQuantity(ctx))
	assert.True(t, ledger.Has(ctx, 7))
	assert.False(t, ledger.Has(ctx, 8))
}

func TestLedgerAddValidatesInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger := newTestLedger(t, NewMemoryKV())

	require.Error(t, ledger.Add(ctx, 0, 1))
	require.Error(t, ledger.Add(ctx, 42, 0))
	assert.True(t, ledger.IsEmpty(ctx))
}

func TestLedgerSetQuantity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger := newTestLedger(t, NewMemoryKV())

	require.NoError(t, ledger.Add(ctx, 42, 2))
	require.NoError(t, ledger.SetQuantity(ctx, 42, 9))
	require.Equal(t, 9, ledger.Entries(ctx)[0].Quantity)

	// Setting a fresh product behaves like an insert, not an increment.
	require.NoError(t, ledger.SetQuantity(ctx, 7, 4))
	require.Len(t, ledger.Entries(ctx), 2)

	// Zero or negative removes.
	require.NoError(t, ledger.SetQuantity(ctx, 42, 0))
	entries := ledger.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ProductID)

	// Removing an absent product is a no-op.
	require.NoError(t, ledger.SetQuantity(ctx, 99, -1))
	require.Len(t, ledger.Entries(ctx), 1)
}

func TestLedgerRemoveAndClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryKV()
	ledger := newTestLedger(t, kv)

	require.NoError(t, ledger.Add(ctx, 42, 2))
	require.NoError(t, ledger.Add(ctx, 7, 1))

	ledger.Remove(ctx, 42)
	ledger.Remove(ctx, 42) // absent, no-op
	require.Len(t, ledger.Entries(ctx), 1)

	ledger.Clear(ctx)
	assert.True(t, ledger.IsEmpty(ctx))

	// Storage is gone too: a fresh ledger over the same KV starts empty.
	fresh := newTestLedger(t, kv)
	assert.True(t, fresh.IsEmpty(ctx))
}

func TestLedgerPersistsAcrossInstances(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryKV()

	first := newTestLedger(t, kv)
	require.NoError(t, first.Add(ctx, 42, 2))
	require.NoError(t, first.Add(ctx, 7, 1))

	second := newTestLedger(t, kv)
	entries := second.Entries(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(42), entries[0].ProductID)
}

func TestLedgerCorruptStorageReadsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "pf:guest_cart", "{not json"))

	ledger := newTestLedger(t, kv)
	assert.True(t, ledger.IsEmpty(ctx))

	// The ledger is still usable and overwrites the corrupt payload.
	require.NoError(t, ledger.Add(ctx, 42, 1))
	raw, err := kv.Get(ctx, "pf:guest_cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productId":42,"quantity":1}]`, raw)
}

func TestLedgerDedupesStoredDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "pf:guest_cart",
		`[{"productId":42,"quantity":2},{"productId":42,"quantity":3},{"productId":0,"quantity":1}]`))

	ledger := newTestLedger(t, kv)
	entries := ledger.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{ProductID: 42, Quantity: 5}, entries[0])
}

func TestLedgerWriteFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := &failingKV{}
	ledger := newTestLedger(t, kv)

	require.NoError(t, ledger.Add(ctx, 42, 2))

	// Persistence failed, but the current session still sees the change.
	entries := ledger.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Quantity)
}

type failingKV struct{}

func (f *failingKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("storage disabled")
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	return errors.New("quota exceeded")
}

func (f *failingKV) Del(ctx context.Context, key string) error {
	return errors.New("storage disabled")
}
