// mpesa-gateway/internal/idempotency/resolver.go
package idempotency

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Resolver decides which third-party reference goes upstream for a payment
// operation. The hybrid policy: a fresh client token is accepted as-is, a
// duplicate or missing one is replaced by a generated token. The chosen
// token enters the used-set before the outbound call, so two concurrent
// requests can never dispatch the same token.
//
// Uniqueness scope is process memory only. A generated token is
// timestamp+random, NOT derived from the transaction reference: resubmitting
// the same reference without a token yields a new token every time.
type Resolver struct {
	mu         sync.Mutex
	used       map[string]struct{}
	order      []string
	maxEntries int

	now func() time.Time
}

// NewResolver builds a resolver. maxEntries bounds the used-set; beyond the
// bound the oldest tokens are evicted. 0 means unbounded.
func NewResolver(maxEntries int) *Resolver {
	return &Resolver{
		used:       make(map[string]struct{}),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Resolve applies the hybrid policy and records the chosen token as used.
func (r *Resolver) Resolve(prefix, clientToken, transactionRef string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := clientToken
	switch {
	case clientToken == "":
		token = r.generate(prefix)
		log.Printf("[idempotency] no client reference for %s, generated %s", transactionRef, token)
	case r.isUsed(clientToken):
		token = r.generate(prefix)
		log.Printf("[idempotency] duplicate reference %s replaced by %s", clientToken, token)
	default:
		log.Printf("[idempotency] using client reference %s", clientToken)
	}

	r.store(token)
	return token
}

// Used reports whether a token is in the used-set.
func (r *Resolver) Used(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isUsed(token)
}

// Len returns the used-set size.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.used)
}

func (r *Resolver) isUsed(token string) bool {
	_, ok := r.used[token]
	return ok
}

func (r *Resolver) store(token string) {
	if _, ok := r.used[token]; ok {
		return
	}
	r.used[token] = struct{}{}
	r.order = append(r.order, token)
	for r.maxEntries > 0 && len(r.order) > r.maxEntries {
		delete(r.used, r.order[0])
		r.order = r.order[1:]
	}
}

// generate builds <prefix>_<YYYYMMDDHHMMSS>_<8 hex>. The random component is
// 32 bits; collisions are negligible but not impossible, which the vendor
// would answer with INS-10.
func (r *Resolver) generate(prefix string) string {
	u := uuid.New()
	return fmt.Sprintf("%s_%s_%x", prefix, r.now().Format("20060102150405"), u[:4])
}
