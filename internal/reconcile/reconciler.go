package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/packfinderz-storefront/internal/auth"
	"github.com/angelmondragon/packfinderz-storefront/internal/guest"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

type merger interface {
	Merge(ctx context.Context, entries []guest.Entry) error
}

// Reconciler folds the guest ledger into the server cart exactly once per
// login transition. The ledger is cleared only after the server confirms
// the merge; a failed merge leaves every guest selection in place, and the
// next observed login for the same identity tries again (the server merge
// endpoint is idempotent for repeated unconsumed ledgers).
type Reconciler struct {
	ledger *guest.Ledger
	cart   merger
	logg   *logger.Logger
	notify func(message string)

	mu     sync.Mutex
	merged map[string]struct{}
}

// Params groups the reconciler dependencies.
type Params struct {
	Ledger *guest.Ledger
	Cart   merger
	Logger *logger.Logger

	// Notify surfaces the user-visible confirmation after a merge. May be
	// nil for headless embedding.
	Notify func(message string)
}

// NewReconciler validates and wires the dependencies.
func NewReconciler(params Params) (*Reconciler, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest ledger is required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart store is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Reconciler{
		ledger: params.Ledger,
		cart:   params.Cart,
		logg:   params.Logger,
		notify: params.Notify,
		merged: map[string]struct{}{},
	}, nil
}

// Bind subscribes to the tracker and fires OnLogin on each anonymous to
// authenticated transition. The returned func cancels the subscription.
func (r *Reconciler) Bind(tracker *auth.Tracker) func() {
	return tracker.Subscribe(func(prev, next auth.Session) {
		switch {
		case !prev.IsAuthenticated() && next.IsAuthenticated():
			// Errors are already logged and surfaced through the cart
			// store; the subscription callback has no caller to hand
			// them to.
			_ = r.OnLogin(context.Background(), next.Identity)
		case prev.IsAuthenticated() && !next.IsAuthenticated():
			// Logout re-arms the one-shot so a later login for the same
			// identity merges whatever the guest adds in between.
			r.forget(prev.Identity)
		}
	})
}

// OnLogin performs the one-shot merge for the newly authenticated identity.
func (r *Reconciler) OnLogin(ctx context.Context, identity string) error {
	if identity == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session identity is required")
	}

	r.mu.Lock()
	if _, done := r.merged[identity]; done {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	lctx := r.logg.WithSessionID(ctx, identity)

	entries := r.ledger.Entries(ctx)
	if len(entries) == 0 {
		r.markDone(identity)
		return nil
	}

	if err := r.cart.Merge(ctx, entries); err != nil {
		// Ledger stays untouched: guest selections must not be lost on a
		// failed merge.
		r.logg.Error(lctx, "guest cart merge failed", err)
		return err
	}

	r.ledger.Clear(ctx)
	r.markDone(identity)
	r.logg.Info(r.logg.WithField(lctx, "entries", len(entries)), "guest cart merged")

	if r.notify != nil {
		r.notify(fmt.Sprintf("Moved %d saved item(s) into your cart", len(entries)))
	}
	return nil
}

func (r *Reconciler) markDone(identity string) {
	r.mu.Lock()
	r.merged[identity] = struct{}{}
	r.mu.Unlock()
}

func (r *Reconciler) forget(identity string) {
	r.mu.Lock()
	delete(r.merged, identity)
	r.mu.Unlock()
}
