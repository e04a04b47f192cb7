package sequencestore_test

import (
	"strings"
	"sync"
	"testing"

	sequencestore "github.com/openzakat/zakathub/internal/app/store/sequence"
	"github.com/openzakat/zakathub/internal/testutil"
)

func TestNext_StartsAtOne(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := sequencestore.New(db)
	n, err := store.Next(ctx, "test_counter")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected first value 1, got %d", n)
	}
}

func TestNext_Monotonic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := sequencestore.New(db)
	var prev int64
	for i := 0; i < 5; i++ {
		n, err := store.Next(ctx, "mono")
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if n <= prev {
			t.Errorf("expected strictly increasing values, got %d after %d", n, prev)
		}
		prev = n
	}
}

func TestNext_IndependentCounters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := sequencestore.New(db)
	if _, err := store.Next(ctx, "a"); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if _, err := store.Next(ctx, "a"); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	n, err := store.Next(ctx, "b")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if n != 1 {
		t.Errorf("counter b must be independent of a, got %d", n)
	}
}

func TestNext_ConcurrentNoDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := sequencestore.New(db)

	const n = 30
	var wg sync.WaitGroup
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.Next(ctx, "race")
			if err != nil {
				t.Errorf("Next failed: %v", err)
				return
			}
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		if seen[v] {
			t.Errorf("duplicate sequence value %d", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct values, got %d", n, len(seen))
	}
}

func TestNextApplicationNumber_Format(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := sequencestore.New(db)
	num, err := store.NextApplicationNumber(ctx)
	if err != nil {
		t.Fatalf("NextApplicationNumber failed: %v", err)
	}
	if num != "ZKT-00000001" {
		t.Errorf("expected ZKT-00000001, got %q", num)
	}
	num2, err := store.NextApplicationNumber(ctx)
	if err != nil {
		t.Fatalf("NextApplicationNumber failed: %v", err)
	}
	if !strings.HasPrefix(num2, "ZKT-") || num2 <= num {
		t.Errorf("expected increasing ZKT numbers, got %q then %q", num, num2)
	}
}
