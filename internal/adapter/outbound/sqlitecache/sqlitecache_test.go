package sqlitecache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/cache"
	"github.com/lattice-abac/pdp/internal/domain/decision"
	"github.com/lattice-abac/pdp/internal/domain/response"
	"github.com/lattice-abac/pdp/internal/domain/value"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decisions.db")
	c, err := Open(path, ttl)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func permitWithObligation() response.Result {
	return response.Result{
		Result: decision.PermitResult(),
		Obligations: []response.Obligation{{
			ID: "log-access",
			Assignments: []response.AttributeAssignment{
				{AttributeID: "message", Category: "obligation", Value: value.New(value.TypeString, "granted")},
			},
		}},
	}
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()
	k := cache.Key(42)

	got, err := c.GetAll(ctx, []cache.Key{k})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[k] != nil {
		t.Fatalf("expected miss, got %+v", got[k])
	}

	if err := c.PutAll(ctx, map[cache.Key]response.Result{k: permitWithObligation()}); err != nil {
		t.Fatalf("PutAll: %v", err)
	}

	got, err = c.GetAll(ctx, []cache.Key{k})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := got[k]
	if r == nil || r.Decision != decision.DecisionPermit {
		t.Fatalf("expected cached Permit, got %+v", r)
	}
	if len(r.Obligations) != 1 || r.Obligations[0].Assignments[0].Value.CanonicalForm() != "granted" {
		t.Fatalf("expected obligation to round-trip, got %+v", r.Obligations)
	}
}

func TestSQLiteCacheExpiresByTTL(t *testing.T) {
	c := openTestCache(t, time.Millisecond)
	ctx := context.Background()
	k := cache.Key(7)

	_ = c.PutAll(ctx, map[cache.Key]response.Result{k: permitWithObligation()})
	time.Sleep(5 * time.Millisecond)

	got, err := c.GetAll(ctx, []cache.Key{k})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[k] != nil {
		t.Fatalf("expected expired entry to miss, got %+v", got[k])
	}
}

func TestSQLiteCacheInvalidate(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()
	_ = c.PutAll(ctx, map[cache.Key]response.Result{cache.Key(1): permitWithObligation()})

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, _ := c.GetAll(ctx, []cache.Key{cache.Key(1)})
	if got[cache.Key(1)] != nil {
		t.Fatalf("expected cache empty after Invalidate")
	}
}
