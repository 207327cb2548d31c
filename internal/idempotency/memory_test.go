package idempotency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beast99-p3/Serverless-Event-Driven-Workflow/internal/idempotency"
)

func TestMemoryStoreClaimThenDuplicate(t *testing.T) {
	store := idempotency.NewMemoryStore()
	ctx := context.Background()
	createdAt := time.Now().UTC()

	outcome, err := store.Claim(ctx, "e1", "o1", createdAt)
	require.NoError(t, err)
	require.Equal(t, idempotency.New, outcome)

	outcome, err = store.Claim(ctx, "e1", "o1", createdAt)
	require.NoError(t, err)
	require.Equal(t, idempotency.Duplicate, outcome)

	outcome, err = store.Claim(ctx, "e2", "o1", createdAt)
	require.NoError(t, err)
	require.Equal(t, idempotency.New, outcome, "a different event id is an independent claim")
	require.Equal(t, 2, store.Len())
}

func TestMemoryStoreExpiredRecordIsClaimableAgain(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	store := idempotency.NewMemoryStore(
		idempotency.MemoryTTL(time.Hour),
		idempotency.MemoryClock(clock),
	)
	ctx := context.Background()

	outcome, err := store.Claim(ctx, "e1", "o1", now)
	require.NoError(t, err)
	require.Equal(t, idempotency.New, outcome)

	now = now.Add(30 * time.Minute)
	outcome, err = store.Claim(ctx, "e1", "o1", now)
	require.NoError(t, err)
	require.Equal(t, idempotency.Duplicate, outcome, "live record must block reprocessing")

	// Past the TTL the record is gone and a replayed duplicate is treated
	// as new; replay must happen within the TTL window to stay deduplicated.
	now = now.Add(2 * time.Hour)
	outcome, err = store.Claim(ctx, "e1", "o1", now)
	require.NoError(t, err)
	require.Equal(t, idempotency.New, outcome)
}

func TestMemoryStoreClaimRace(t *testing.T) {
	store := idempotency.NewMemoryStore()
	ctx := context.Background()
	createdAt := time.Now().UTC()

	const racers = 32
	outcomes := make([]idempotency.Outcome, racers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outcome, err := store.Claim(ctx, "contested", "o1", createdAt)
			require.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, o := range outcomes {
		if o == idempotency.New {
			wins++
		}
	}
	require.Equal(t, 1, wins, "exactly one concurrent claim may win")
}
