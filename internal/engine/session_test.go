package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javiermolinar/matchplan/internal/schedule"
)

func TestEditSession_CommitWithoutWarnings(t *testing.T) {
	h := newHarness(t, testOriginals())
	ctx := context.Background()
	s := h.NewSession()
	assert.Equal(t, SessionIdle, s.State())

	require.NoError(t, s.Begin("M1"))
	assert.Equal(t, SessionEditing, s.State())
	require.NoError(t, s.Choose(key(3, "19:00", "B"), MoveOptions{}))

	out, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, out.Status)
	assert.Equal(t, SessionCommitted, s.State())
}

func TestEditSession_ConfirmWarnings(t *testing.T) {
	h := newHarness(t, testOriginals())
	ctx := context.Background()
	s := h.NewSession()

	require.NoError(t, s.Begin("M1"))
	require.NoError(t, s.Choose(key(4, "19:00", "A"), MoveOptions{}))

	out, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsConfirmation, out.Status)
	assert.Equal(t, SessionValidatingConflict, s.State())
	assert.NotEmpty(t, s.Pending().Warnings)
	assert.Empty(t, h.Modifications(), "nothing is written while validating")

	out, err = s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, out.Status)
	assert.Equal(t, SessionCommitted, s.State())
	assert.Len(t, h.Modifications(), 1)
}

func TestEditSession_CancelDiscards(t *testing.T) {
	h := newHarness(t, testOriginals())
	ctx := context.Background()
	s := h.NewSession()

	require.NoError(t, s.Begin("M1"))
	require.NoError(t, s.Choose(key(4, "19:00", "A"), MoveOptions{}))
	_, err := s.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, SessionValidatingConflict, s.State())

	s.Cancel()

	assert.Equal(t, SessionIdle, s.State())
	assert.Empty(t, h.Modifications())
	_, err = s.Confirm(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEditSession_RejectedStaysEditing(t *testing.T) {
	h := newHarness(t, testOriginals())
	ctx := context.Background()
	s := h.NewSession()

	require.NoError(t, s.Begin("M1"))
	require.NoError(t, s.Choose(key(3, "20:00", "A"), MoveOptions{}))

	out, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)
	assert.Equal(t, ReasonSlotOccupied, out.Reason)
	assert.Equal(t, SessionEditing, s.State())

	require.NoError(t, s.Choose(key(3, "20:00", "A"), MoveOptions{Swap: true}))
	out, err = s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, out.Status)
}

func TestEditSession_InvalidTransitions(t *testing.T) {
	h := newHarness(t, testOriginals())
	ctx := context.Background()
	s := h.NewSession()

	assert.ErrorIs(t, s.Choose(key(3, "19:00", "B"), MoveOptions{}), ErrInvalidTransition)
	_, err := s.Submit(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, s.Begin("nope"), schedule.ErrMatchNotFound)

	require.NoError(t, s.Begin("M1"))
	assert.ErrorIs(t, s.Begin("M2"), ErrInvalidTransition)
	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition, "no target chosen")
}
