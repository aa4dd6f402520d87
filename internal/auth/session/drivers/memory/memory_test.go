package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/session"
	"github.com/corvid-labs/facegate/internal/auth/session/drivers/memory"
	"github.com/corvid-labs/facegate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newAttempt(ttl time.Duration) domain.PendingAttempt {
	now := time.Now()
	return domain.PendingAttempt{
		ID:        idx.New().String(),
		UserID:    idx.New().String(),
		Method:    domain.MethodTOTP,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestAttemptLifecycle(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	a := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, a))

	got, err := tr.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.UserID, got.UserID)

	consumed, err := tr.ConsumeAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, consumed.ID)

	_, err = tr.GetAttempt(ctx, a.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestExpiredAttemptBehavesAsAbsent(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	a := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, a))

	tr.SetClock(func() time.Time { return a.ExpiresAt.Add(time.Second) })

	_, err := tr.GetAttempt(ctx, a.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestAttemptValidAtExactExpiry(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	a := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, a))

	tr.SetClock(func() time.Time { return a.ExpiresAt })

	_, err := tr.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
}

func TestRecordAttemptFailureDestroysAtCap(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	a := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, a))

	for i := 1; i < domain.MaxVerifyAttempts; i++ {
		n, destroyed, err := tr.RecordAttemptFailure(ctx, a.ID, domain.MaxVerifyAttempts)
		require.NoError(t, err)
		require.False(t, destroyed)
		require.Equal(t, i, n)
	}

	n, destroyed, err := tr.RecordAttemptFailure(ctx, a.ID, domain.MaxVerifyAttempts)
	require.NoError(t, err)
	require.True(t, destroyed)
	require.Equal(t, domain.MaxVerifyAttempts, n)

	_, err = tr.GetAttempt(ctx, a.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestNewAttemptSupersedesPriorForUser(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	first := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, first))

	second := newAttempt(time.Minute)
	second.UserID = first.UserID
	require.NoError(t, tr.CreateAttempt(ctx, second))

	_, err := tr.GetAttempt(ctx, first.ID)
	require.ErrorIs(t, err, session.ErrNotFound)

	_, err = tr.GetAttempt(ctx, second.ID)
	require.NoError(t, err)

	// Attempts of other users are untouched.
	other := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, other))
	_, err = tr.GetAttempt(ctx, second.ID)
	require.NoError(t, err)
}

func TestConsumeAttemptSingleWinner(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	a := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, a))

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.ConsumeAttempt(ctx, a.ID); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1)
}

func TestSessionFaceVerifiedOneShot(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	s := domain.Session{
		ID:        idx.New().String(),
		UserID:    idx.New().String(),
		Roles:     []string{"user"},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, tr.CreateSession(ctx, s))

	ok, err := tr.ConsumeFaceVerified(ctx, s.ID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, tr.MarkFaceVerified(ctx, s.ID))

	ok, err = tr.ConsumeFaceVerified(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// the marker does not survive consumption
	ok, err = tr.ConsumeFaceVerified(ctx, s.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteSessionRevokes(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	s := domain.Session{
		ID:        idx.New().String(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, tr.CreateSession(ctx, s))
	require.NoError(t, tr.DeleteSession(ctx, s.ID))

	_, err := tr.GetSession(ctx, s.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestSweepReapsExpired(t *testing.T) {
	tr := memory.New()
	ctx := context.Background()

	live := newAttempt(time.Hour)
	stale := newAttempt(time.Minute)
	require.NoError(t, tr.CreateAttempt(ctx, live))
	require.NoError(t, tr.CreateAttempt(ctx, stale))

	tr.SetClock(func() time.Time { return stale.ExpiresAt.Add(time.Second) })

	require.Equal(t, 1, tr.Sweep())

	_, err := tr.GetAttempt(ctx, live.ID)
	require.NoError(t, err)
}
