// mpesa-gateway/internal/audit/dispatcher.go
package audit

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	m "github.com/example/mpesa-gateway/pkg/metrics"
)

// Dispatcher decouples audit persistence from the caller-facing path.
// Enqueue never blocks beyond queue insertion and never fails upward; a full
// queue routes the record straight to the local fallback file. A single
// drain worker starts lazily on the first enqueue and exits once the queue
// stays empty for the idle timeout.
type Dispatcher struct {
	store        Store
	queue        chan Record
	fallbackPath string
	idleTimeout  time.Duration
	attempts     int
	backoff      time.Duration

	mu       sync.Mutex
	draining bool
	closed   bool
	wg       sync.WaitGroup

	fileMu sync.Mutex

	persisted atomic.Int64
	failed    atomic.Int64
}

// Options tune the dispatcher; zero values pick the defaults.
type Options struct {
	QueueSize   int           // default 1024
	IdleTimeout time.Duration // default 2s
	Attempts    int           // default 3
	Backoff     time.Duration // default 500ms, linear per attempt
}

func NewDispatcher(store Store, fallbackPath string, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Dispatcher{
		store:        store,
		queue:        make(chan Record, opts.QueueSize),
		fallbackPath: fallbackPath,
		idleTimeout:  opts.IdleTimeout,
		attempts:     opts.Attempts,
		backoff:      opts.Backoff,
	}
}

// Enqueue hands a record to the background path and returns immediately.
func (d *Dispatcher) Enqueue(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	// the closed check and the send stay under one lock: a record either
	// enters the queue before Close marks it closed (and gets flushed), or
	// goes to the fallback file; it can never be stranded in between
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.writeFallback(rec, "dispatcher_closed")
		return
	}
	select {
	case d.queue <- rec:
		m.SetAuditQueueDepth(len(d.queue))
	default:
		d.mu.Unlock()
		d.writeFallback(rec, "queue_full")
		return
	}
	if !d.draining {
		d.draining = true
		d.wg.Add(1)
		go d.drain()
		log.Printf("[audit] drain worker started")
	}
	d.mu.Unlock()
}

// Stats is the observability snapshot.
type Stats struct {
	Queued         int   `json:"queued_count"`
	Draining       bool  `json:"is_draining"`
	TotalPersisted int64 `json:"total_persisted"`
	TotalFailed    int64 `json:"total_failed"`
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	draining := d.draining
	d.mu.Unlock()
	return Stats{
		Queued:         len(d.queue),
		Draining:       draining,
		TotalPersisted: d.persisted.Load(),
		TotalFailed:    d.failed.Load(),
	}
}

// Close drains outstanding records and stops accepting new ones.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		// the worker may have exited with records still queued if they
		// arrived after its idle check; flush the remainder here
		for {
			select {
			case rec := <-d.queue:
				d.process(rec)
			default:
				close(done)
				return
			}
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()
	timer := time.NewTimer(d.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case rec := <-d.queue:
			m.SetAuditQueueDepth(len(d.queue))
			d.process(rec)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.idleTimeout)
		case <-timer.C:
			// idle; re-check under the lock so a concurrent Enqueue either
			// lands in this worker or starts a fresh one
			d.mu.Lock()
			select {
			case rec := <-d.queue:
				d.mu.Unlock()
				d.process(rec)
				timer.Reset(d.idleTimeout)
			default:
				d.draining = false
				d.mu.Unlock()
				log.Printf("[audit] drain worker idle, stopping (persisted=%d failed=%d)",
					d.persisted.Load(), d.failed.Load())
				return
			}
		}
	}
}

func (d *Dispatcher) process(rec Record) {
	if d.insertWithRetry(rec) {
		d.persisted.Add(1)
		m.IncAudit("persisted")
		return
	}
	d.failed.Add(1)
	m.IncAudit("failed")
	d.writeFallback(rec, "store_error")
}

func (d *Dispatcher) insertWithRetry(rec Record) bool {
	for attempt := 1; attempt <= d.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := d.store.Insert(ctx, rec)
		cancel()
		if err == nil {
			return true
		}
		log.Printf("[audit] insert attempt %d/%d failed for %s: %v",
			attempt, d.attempts, rec.TransactionReference, err)
		if attempt < d.attempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	return false
}

type fallbackEntry struct {
	FallbackID string    `json:"fallback_id"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason"`
	Record     Record    `json:"record"`
}

func (d *Dispatcher) writeFallback(rec Record, reason string) {
	entry := fallbackEntry{
		FallbackID: uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Reason:     reason,
		Record:     rec,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[audit] fallback marshal failed: %v", err)
		return
	}

	d.fileMu.Lock()
	defer d.fileMu.Unlock()
	f, err := os.OpenFile(d.fallbackPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[audit] fallback open failed: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		log.Printf("[audit] fallback write failed: %v", err)
		return
	}
	m.IncAudit("fallback")
	log.Printf("[audit] record for %s written to fallback file (%s)", rec.TransactionReference, reason)
}
