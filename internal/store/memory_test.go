package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shuttleboard/shuttleboard/internal/model"
)

func TestMemory_QueueSequencePerTeam(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	e1, err := m.CreateQueueEntry(ctx, 1, 10, nil, model.QueueWaiting)
	require.NoError(t, err)
	e2, err := m.CreateQueueEntry(ctx, 1, 11, nil, model.QueueWaiting)
	require.NoError(t, err)
	other, err := m.CreateQueueEntry(ctx, 2, 10, nil, model.QueueWaiting)
	require.NoError(t, err)

	require.Equal(t, int64(1), e1.SequenceNumber)
	require.Equal(t, int64(2), e2.SequenceNumber)
	require.Equal(t, int64(1), other.SequenceNumber, "sequences are per team")
}

func TestMemory_WaitingQueueFiltersAndOrders(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.CreateQueueEntry(ctx, 1, 10, nil, model.QueueWaiting)
	require.NoError(t, err)
	served, err := m.CreateQueueEntry(ctx, 1, 11, nil, model.QueueServed)
	require.NoError(t, err)
	_, err = m.CreateQueueEntry(ctx, 1, 12, nil, model.QueueWaiting)
	require.NoError(t, err)

	waiting, err := m.GetWaitingQueueByTeam(ctx, 1)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	require.Equal(t, model.MemberID(10), waiting[0].PlayerID)
	require.Equal(t, model.MemberID(12), waiting[1].PlayerID)
	require.NotNil(t, served.ServedAt, "SERVED entries are stamped on creation")
}

func TestMemory_UpdateQueueStatusStampsTimes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	clock := time.Date(2025, 6, 7, 19, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return clock })

	e, err := m.CreateQueueEntry(ctx, 1, 10, nil, model.QueueWaiting)
	require.NoError(t, err)

	require.NoError(t, m.UpdateQueueStatus(ctx, e.ID, model.QueueServed))
	waiting, err := m.GetWaitingQueueByTeam(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, waiting)

	require.ErrorIs(t, m.UpdateQueueStatus(ctx, 999, model.QueueServed), ErrNotFound)
}

func TestMemory_DeleteWaitingByTeam(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, id := range []model.MemberID{10, 11, 12} {
		_, err := m.CreateQueueEntry(ctx, 1, id, nil, model.QueueWaiting)
		require.NoError(t, err)
	}
	_, err := m.CreateQueueEntry(ctx, 1, 13, nil, model.QueueServed)
	require.NoError(t, err)
	_, err = m.CreateQueueEntry(ctx, 2, 10, nil, model.QueueWaiting)
	require.NoError(t, err)

	deleted, err := m.DeleteWaitingByTeam(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, deleted)

	// Other team and SERVED records untouched.
	other, err := m.GetWaitingQueueByTeam(ctx, 2)
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestMemory_UpsertPlayerRefreshesIdentity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	clock := time.Date(2025, 6, 7, 19, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return clock })

	p1, err := m.UpsertPlayer(ctx, 1, model.Member{ID: 10, DisplayName: "Ari"})
	require.NoError(t, err)
	require.Equal(t, clock, p1.CreatedAt)

	clock = clock.Add(time.Hour)
	p2, err := m.UpsertPlayer(ctx, 1, model.Member{ID: 10, DisplayName: "Ariel", Contact: "a@x"})
	require.NoError(t, err)
	require.Equal(t, "Ariel", p2.Name)
	require.Equal(t, "a@x", p2.Contact)
	require.Equal(t, p1.CreatedAt, p2.CreatedAt, "upsert keeps the original creation time")
	require.True(t, p2.UpdatedAt.After(p1.UpdatedAt))
}

func TestMemory_ClearCourtSlotsResetsTimes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	c := &model.Court{TeamID: 1, Name: "Court A"}
	require.NoError(t, m.CreateCourt(ctx, c))
	c.SetPlayer(1, 10)
	now := time.Now()
	c.StartedAt = &now
	require.NoError(t, m.UpdateCourt(ctx, c))

	require.NoError(t, m.ClearCourtSlots(ctx, c.ID))
	got, err := m.GetCourt(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, got.Occupants())
	require.Nil(t, got.StartedAt)
	require.Equal(t, model.CourtEmpty, got.State())
}

func TestMemory_GetCourtReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	c := &model.Court{TeamID: 1}
	require.NoError(t, m.CreateCourt(ctx, c))

	got, err := m.GetCourt(ctx, c.ID)
	require.NoError(t, err)
	got.SetPlayer(1, 10)

	again, err := m.GetCourt(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, again.Occupants(), "mutating a returned court must not leak into the store")
}

func TestMemory_OngoingMatchLookup(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.GetOngoingMatchByCourt(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)

	match := &model.Match{
		TeamID:    1,
		CourtID:   1,
		Players:   [4]model.MemberID{10, 11, 12, 13},
		Status:    model.MatchOngoing,
		StartedAt: time.Now(),
	}
	require.NoError(t, m.CreateMatch(ctx, match))

	got, err := m.GetOngoingMatchByCourt(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, match.ID, got.ID)

	require.NoError(t, m.FinishMatch(ctx, match.ID, time.Now()))
	_, err = m.GetOngoingMatchByCourt(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
}
