package multiplayer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/chukrum/internal/gameid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...MemoryStoreOption) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(opts...)
	require.NoError(t, err)
	return s
}

func TestMemoryStoreCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := quartz.NewMock(t)
	s := newStore(t, WithStoreClock(clock))

	rec := &Record{HostID: "ana"}
	require.NoError(t, s.Create(ctx, rec))
	require.NoError(t, gameid.Validate(rec.ID))
	assert.Equal(t, int64(1), rec.Version)
	assert.WithinDuration(t, clock.Now(), rec.CreatedAt, 0)

	dup := &Record{ID: rec.ID, HostID: "ben"}
	assert.ErrorIs(t, s.Create(ctx, dup), ErrExists)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.HostID)

	got.HostID = "mutated"
	again, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", again.HostID, "Get returns a copy")

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConditionalUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	rec := &Record{HostID: "ana"}
	require.NoError(t, s.Create(ctx, rec))

	updated, err := s.Update(ctx, rec.ID, Patch{"lastAction": "first"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "first", updated.LastAction)

	_, err = s.Update(ctx, rec.ID, Patch{"lastAction": "late"}, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	updated, err = s.Update(ctx, rec.ID, Patch{"lastAction": "forced"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Version)

	_, err = s.Update(ctx, "missing", Patch{}, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update(ctx, rec.ID, Patch{"turnNumber": "nope"}, 0)
	require.Error(t, err)
	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version, "a bad patch writes nothing")
}

func TestMemoryStoreSubscribe(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newStore(t)

	rec := &Record{HostID: "ana"}
	require.NoError(t, s.Create(ctx, rec))

	ch, err := s.Subscribe(ctx, rec.ID)
	require.NoError(t, err)
	first := <-ch
	assert.Equal(t, int64(1), first.Version)

	_, err = s.Update(ctx, rec.ID, Patch{"lastAction": "moved"}, 0)
	require.NoError(t, err)
	select {
	case next := <-ch:
		assert.Equal(t, int64(2), next.Version)
		assert.Equal(t, "moved", next.LastAction)
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 5*time.Millisecond)

	_, err = s.Subscribe(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSlowSubscriberKeepsNewest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	rec := &Record{HostID: "ana"}
	require.NoError(t, s.Create(ctx, rec))
	ch, err := s.Subscribe(ctx, rec.ID)
	require.NoError(t, err)

	for range subscriberBuffer * 2 {
		_, err := s.Update(ctx, rec.ID, Patch{"lastAction": "tick"}, 0)
		require.NoError(t, err)
	}

	var last *Record
	for len(ch) > 0 {
		last = <-ch
	}
	require.NotNil(t, last)
	assert.Equal(t, int64(1+subscriberBuffer*2), last.Version)
}

func TestMemoryStoreDeleteClosesSubscribers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	rec := &Record{HostID: "ana"}
	require.NoError(t, s.Create(ctx, rec))
	ch, err := s.Subscribe(ctx, rec.ID)
	require.NoError(t, err)
	<-ch

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, open := <-ch
	assert.False(t, open)

	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, rec.ID), ErrNotFound)
}

func TestMemoryStoreSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "games.json")

	s := newStore(t, WithSnapshotFile(path))
	rec := &Record{HostID: "ana", GuestID: "ben"}
	rec.SetState(tableState("Ks Qs", "2h 3h", "6d 6c", "10d"))
	require.NoError(t, s.Create(ctx, rec))
	_, err := s.Update(ctx, rec.ID, Patch{"lastAction": "saved"}, 0)
	require.NoError(t, err)

	reloaded := newStore(t, WithSnapshotFile(path))
	got, err := reloaded.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "saved", got.LastAction)
	assert.Equal(t, ranksOf(rec.HostHand), ranksOf(got.HostHand))
	assert.Equal(t, rec.CardCount(), got.CardCount())

	fresh := newStore(t, WithSnapshotFile(filepath.Join(t.TempDir(), "none.json")))
	_, err = fresh.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
