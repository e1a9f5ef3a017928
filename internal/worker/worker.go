package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"CryptoPayRecon/internal/chain"
	"CryptoPayRecon/internal/matching"
	"CryptoPayRecon/internal/models"
)

// Store is the persistence surface the reconciler needs. *store.Store
// satisfies it; tests use fakes.
type Store interface {
	ListActivePayments(ctx context.Context, window time.Duration) ([]*models.ExpectedPayment, error)
	CountActivePayments(ctx context.Context, window time.Duration) (int64, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetSellerAddress(ctx context.Context, sellerID string, asset models.Asset) (string, bool, error)
	MarkPaid(ctx context.Context, paymentID, orderID string) (bool, error)
}

// Reconciler drives the polling loop that matches registered expected
// payments against live transfers. It is Stopped until an active payment
// exists, polls while any remain, and shuts itself down when the active set
// drains. Start and Stop are idempotent and the cycle may repeat any number
// of times over the process lifetime.
type Reconciler struct {
	Store      Store
	Adapters   chain.Registry
	Interval   time.Duration
	Window     time.Duration
	FetchLimit int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}

	ticking atomic.Bool
}

func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.wake = make(chan struct{}, 1)
	go r.run(ctx, r.done, r.wake)
	log.Printf("reconciler started (interval=%s window=%s)", r.interval(), r.window())
}

// Stop cancels the timer and waits for any in-flight tick to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	<-done
	log.Printf("reconciler stopped")
}

func (r *Reconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// EnsureRunning starts the loop when at least one payment is inside its
// matching window. Called after a payment is registered and by the worker's
// discovery loop.
func (r *Reconciler) EnsureRunning(ctx context.Context) error {
	if r.Running() {
		return nil
	}
	n, err := r.Store.CountActivePayments(ctx, r.window())
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	r.Start()
	return nil
}

// Wake nudges a running loop to tick ahead of schedule. A stopped reconciler
// ignores it.
func (r *Reconciler) Wake() {
	r.mu.Lock()
	wake := r.wake
	running := r.running
	r.mu.Unlock()
	if !running || wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (r *Reconciler) run(ctx context.Context, done chan struct{}, wake chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	for {
		if drained := r.tick(ctx); drained {
			r.mu.Lock()
			r.running = false
			if r.cancel != nil {
				r.cancel()
				r.cancel = nil
			}
			r.mu.Unlock()
			log.Printf("reconciler stopped: no active payments")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// tick processes every active payment once. It returns true when the active
// set is empty and the loop should shut down. A tick that fires while the
// previous one is still running is skipped, never run concurrently.
func (r *Reconciler) tick(ctx context.Context) bool {
	if !r.ticking.CompareAndSwap(false, true) {
		log.Printf("tick still in progress, skipping")
		return false
	}
	defer r.ticking.Store(false)

	payments, err := r.Store.ListActivePayments(ctx, r.window())
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("list active payments failed: %v", err)
		}
		return false
	}
	if len(payments) == 0 {
		return true
	}

	log.Printf("tick active=%d", len(payments))
	for _, p := range payments {
		if err := r.reconcile(ctx, p); err != nil {
			log.Printf("reconcile payment %s failed: %v", p.ID, err)
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func (r *Reconciler) reconcile(ctx context.Context, p *models.ExpectedPayment) error {
	order, err := r.Store.GetOrder(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", p.OrderID, err)
	}
	if order.Status != models.OrderAwaitingPayment {
		return nil
	}

	adapter, ok := r.Adapters.For(p.Asset)
	if !ok {
		return fmt.Errorf("no adapter for asset %s", p.Asset)
	}

	// Wallets get reassigned; match against whichever address the seller
	// currently designates, not the snapshot on the payment record.
	addr, found, err := r.Store.GetSellerAddress(ctx, order.SellerID, p.Asset)
	if err != nil {
		return fmt.Errorf("load seller address: %w", err)
	}
	if !found {
		return nil
	}

	transfers, err := adapter.FetchIncoming(ctx, addr, r.fetchLimit())
	if err != nil {
		return fmt.Errorf("fetch %s transfers: %w", p.Asset, err)
	}

	tr, ok := matching.Match(*p, transfers)
	if !ok {
		return nil
	}

	applied, err := r.Store.MarkPaid(ctx, p.ID, p.OrderID)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if applied {
		log.Printf("payment %s matched tx=%s amount=%s %s; order %s -> pending",
			p.ID, tr.TxID, tr.Amount, p.Asset, p.OrderID)
	}
	return nil
}

func (r *Reconciler) interval() time.Duration {
	if r.Interval > 0 {
		return r.Interval
	}
	return 30 * time.Second
}

func (r *Reconciler) window() time.Duration {
	if r.Window > 0 {
		return r.Window
	}
	return 10 * time.Minute
}

func (r *Reconciler) fetchLimit() int {
	if r.FetchLimit > 0 {
		return r.FetchLimit
	}
	return 50
}
