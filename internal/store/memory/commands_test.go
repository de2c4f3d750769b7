// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-dev/scrivo/internal/store"
	"github.com/scrivo-dev/scrivo/internal/store/memory"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

func newCommand(id string, createdAt time.Time) *store.Command {
	return &store.Command{
		ID:        id,
		Type:      store.CommandCreateNote,
		Content:   store.CommandContent{Text: "note body"},
		Status:    store.CommandStatusNew,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCreateAndGetCommand(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()

	cmd := newCommand("cmd-1", time.Now().UTC())
	require.NoError(t, s.Create(ctx, cmd))

	got, err := s.Get(ctx, "cmd-1")
	require.NoError(t, err)
	assert.Equal(t, store.CommandStatusNew, got.Status)
	assert.Equal(t, store.CommandCreateNote, got.Type)

	_, err = s.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, scrivoerr.IsNotFound(err))
}

func TestCreateDuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()

	require.NoError(t, s.Create(ctx, newCommand("cmd-1", time.Now().UTC())))
	err := s.Create(ctx, newCommand("cmd-1", time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, scrivoerr.IsConflict(err))
}

func TestClaimNextOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()

	base := time.Now().UTC()
	require.NoError(t, s.Create(ctx, newCommand("cmd-b", base.Add(time.Second))))
	require.NoError(t, s.Create(ctx, newCommand("cmd-a", base)))

	claimed, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "cmd-a", claimed.ID)
	assert.Equal(t, store.CommandStatusProcessing, claimed.Status)

	claimed, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "cmd-b", claimed.ID)

	// Queue drained.
	claimed, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimNextIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, s.Create(ctx, newCommand(fmt.Sprintf("cmd-%02d", i), time.Now().UTC())))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cmd, err := s.ClaimNext(ctx)
				if !assert.NoError(t, err) {
					return
				}
				if cmd == nil {
					return
				}
				mu.Lock()
				seen[cmd.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "command %s claimed %d times", id, count)
	}
}

func TestFinishTransitions(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()

	require.NoError(t, s.Create(ctx, newCommand("cmd-1", time.Now().UTC())))
	claimed, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, s.Finish(ctx, "cmd-1", store.CommandStatusCompleted, ""))

	got, err := s.Get(ctx, "cmd-1")
	require.NoError(t, err)
	assert.Equal(t, store.CommandStatusCompleted, got.Status)

	// Terminal records are immutable.
	err = s.Finish(ctx, "cmd-1", store.CommandStatusError, "late failure")
	require.Error(t, err)
	assert.True(t, scrivoerr.IsConflict(err))

	got, err = s.Get(ctx, "cmd-1")
	require.NoError(t, err)
	assert.Equal(t, store.CommandStatusCompleted, got.Status)
	assert.Empty(t, got.Errors)
}

func TestFinishRequiresTerminalStatus(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()
	require.NoError(t, s.Create(ctx, newCommand("cmd-1", time.Now().UTC())))

	err := s.Finish(ctx, "cmd-1", store.CommandStatusProcessing, "")
	require.Error(t, err)
	assert.True(t, scrivoerr.IsInvalidInput(err))
}

func TestFinishRecordsError(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()
	require.NoError(t, s.Create(ctx, newCommand("cmd-1", time.Now().UTC())))

	_, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Finish(ctx, "cmd-1", store.CommandStatusError, "vault unreachable"))

	got, err := s.Get(ctx, "cmd-1")
	require.NoError(t, err)
	assert.Equal(t, store.CommandStatusError, got.Status)
	assert.Equal(t, "vault unreachable", got.Errors)
}

func TestAbandonStale(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()

	old := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, s.Create(ctx, newCommand("cmd-old", old)))
	require.NoError(t, s.Create(ctx, newCommand("cmd-new", time.Now().UTC())))

	// A stale PROCESSING command gets reclaimed too, but a fresh claim
	// bumps updated_at past the cutoff, so claim after setting cutoff.
	n, err := s.AbandonStale(ctx, time.Now().UTC().Add(-30*time.Second), "abandoned")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Get(ctx, "cmd-old")
	require.NoError(t, err)
	assert.Equal(t, store.CommandStatusAbandoned, got.Status)
	assert.Equal(t, "abandoned", got.Errors)

	got, err = s.Get(ctx, "cmd-new")
	require.NoError(t, err)
	assert.Equal(t, store.CommandStatusNew, got.Status)
}

func TestAbandonStaleSkipsTerminal(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCommandStore()

	old := time.Now().UTC().Add(-time.Minute)
	cmd := newCommand("cmd-done", old)
	require.NoError(t, s.Create(ctx, cmd))
	_, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Finish(ctx, "cmd-done", store.CommandStatusCompleted, ""))

	// Force staleness by using a future cutoff; terminal records stay put.
	n, err := s.AbandonStale(ctx, time.Now().UTC().Add(time.Hour), "abandoned")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err := s.Get(ctx, "cmd-done")
	require.NoError(t, err)
	assert.Equal(t, store.CommandStatusCompleted, got.Status)
}
