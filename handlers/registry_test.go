package handlers

import (
	"testing"
	"time"

	"tablefilter/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateGetDelete(t *testing.T) {
	reg := newTestRegistry(t)

	s := reg.Create(models.CreateSessionRequest{})
	assert.Equal(t, testNow, s.CreatedAt)

	got, err := reg.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, reg.Delete(s.ID))
	_, err = reg.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, reg.Delete(s.ID), ErrSessionNotFound)

	_, err = reg.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_RecordsLastFilter(t *testing.T) {
	reg := newTestRegistry(t)

	index := 0
	s := reg.Create(models.CreateSessionRequest{DefaultPeriodIndex: &index})

	require.Eventually(t, func() bool { return s.LastFilter() != nil }, time.Second, 5*time.Millisecond)
	last := s.LastFilter()
	require.NotNil(t, last.SelectedPeriod)
	assert.Equal(t, models.PeriodToday, last.SelectedPeriod.Period)
	assert.Equal(t, time.Date(2024, time.March, 16, 23, 59, 59, int(999*time.Millisecond), time.UTC), last.RangeEnd)
}

func TestRegistry_CloseEndsStreams(t *testing.T) {
	reg := newTestRegistry(t)
	s := reg.Create(models.CreateSessionRequest{})
	events := s.hub.subscribe()

	reg.Close()

	assert.Equal(t, 0, reg.Len())
	_, ok := <-events
	assert.False(t, ok)

	late := s.hub.subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestHub_DropsForSlowClients(t *testing.T) {
	h := newHub()
	slow := h.subscribe()

	for i := 0; i < 20; i++ {
		h.broadcast(models.ResolvedFilter{Operator: models.OperatorAnd})
	}
	assert.Len(t, slow, 16)

	h.unsubscribe(slow)
	h.unsubscribe(slow)
	_, ok := <-drain(slow)
	assert.False(t, ok)
}

func drain(ch chan models.ResolvedFilter) chan models.ResolvedFilter {
	for range ch {
	}
	return ch
}
