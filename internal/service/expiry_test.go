package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExpiry(store *fakeStore) *expiryService {
	s := NewExpiryService(store, NewNotificationService(store, testLogger()), testLogger()).(*expiryService)
	s.now = store.now
	return s
}

func TestExpirySweep_FiresOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := newTestExpiry(store)
	user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(-time.Minute))

	fired, err := svc.Sweep(ctx, user)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, domain.PlanFree, user.Plan)
	assert.Equal(t, domain.PlanStatusExpired, user.PlanStatus)
	assert.Nil(t, user.PlanEnd)

	stored := store.user(user.ID)
	assert.Equal(t, string(domain.PlanFree), stored.Plan)
	assert.Equal(t, string(domain.PlanStatusExpired), stored.PlanStatus)
	assert.False(t, stored.PlanEnd.Valid)

	fired, err = svc.Sweep(ctx, user)
	require.NoError(t, err)
	assert.False(t, fired, "second sweep is a no-op")
	assert.Equal(t, domain.PlanStatusExpired, user.PlanStatus)
	assert.Equal(t, 1, store.notificationsFor(uuid.NullUUID{UUID: user.ID, Valid: true}, domain.NotifyPlanExpired))
}

func TestExpirySweep_NotYetLapsed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := newTestExpiry(store)

	tests := []struct {
		name    string
		plan    domain.Plan
		status  domain.PlanStatus
		planEnd *time.Time
	}{
		{"end in the future", domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour)},
		{"end exactly now", domain.PlanPro, domain.PlanStatusActive, future(0)},
		{"free plan", domain.PlanFree, domain.PlanStatusActive, future(-time.Hour)},
		{"no end date", domain.PlanPro, domain.PlanStatusActive, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := store.addUser(tt.plan, tt.status, tt.planEnd)
			fired, err := svc.Sweep(ctx, user)
			require.NoError(t, err)
			assert.False(t, fired)
			assert.Equal(t, string(tt.plan), store.user(user.ID).Plan)
		})
	}
}

func TestExpirySweep_SkipsStaff(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := newTestExpiry(store)
	user := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(-24*time.Hour))
	store.setStaff(user.ID)
	user.IsStaff = true

	fired, err := svc.Sweep(ctx, user)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, string(domain.PlanProPlus), store.user(user.ID).Plan)

	n, err := svc.SweepLapsed(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpirySweep_ConcurrentSweepsFireOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := newTestExpiry(store)
	user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(-time.Second))

	const workers = 16
	var (
		wg    sync.WaitGroup
		fires atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := *user
			fired, err := svc.Sweep(ctx, &local)
			assert.NoError(t, err)
			assert.Equal(t, domain.PlanStatusExpired, local.PlanStatus, "losers see the stored state")
			if fired {
				fires.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fires.Load())
	assert.Equal(t, 1, store.notificationsFor(uuid.NullUUID{UUID: user.ID, Valid: true}, domain.NotifyPlanExpired))
}

func TestExpirySweep_RenewedConcurrentlyIsKept(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := newTestExpiry(store)
	user := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(-time.Minute))

	// Another request renews the plan after this one loaded the user.
	stale := *user
	renewed := store.user(user.ID)
	renewed.PlanEnd.Time = testNow.Add(domain.DefaultPlanDuration)
	store.mu.Lock()
	store.data.users[user.ID] = renewed
	store.mu.Unlock()

	fired, err := svc.Sweep(ctx, &stale)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, domain.PlanStatusActive, stale.PlanStatus)
	require.NotNil(t, stale.PlanEnd)
	assert.Equal(t, renewed.PlanEnd.Time, *stale.PlanEnd)
}

func TestExpirySweepLapsed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	svc := newTestExpiry(store)

	var lapsedIDs []uuid.UUID
	for range 5 {
		u := store.addUser(domain.PlanPro, domain.PlanStatusActive, future(-time.Hour))
		lapsedIDs = append(lapsedIDs, u.ID)
	}
	active := store.addUser(domain.PlanProPlus, domain.PlanStatusActive, future(time.Hour))
	free := store.addUser(domain.PlanFree, domain.PlanStatusActive, nil)

	n, err := svc.SweepLapsed(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, id := range lapsedIDs {
		assert.Equal(t, string(domain.PlanStatusExpired), store.user(id).PlanStatus)
	}
	assert.Equal(t, string(domain.PlanProPlus), store.user(active.ID).Plan)
	assert.Equal(t, string(domain.PlanStatusActive), store.user(free.ID).PlanStatus)

	n, err = svc.SweepLapsed(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, n, "a second pass finds nothing")
}

func TestExpirySweepLapsed_CancelledContext(t *testing.T) {
	store := newTestStore()
	svc := newTestExpiry(store)
	store.addUser(domain.PlanPro, domain.PlanStatusActive, future(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SweepLapsed(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
