// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

// Package command drives note-mutation commands through their lifecycle:
// NEW -> PROCESSING -> exactly one of COMPLETED, ABANDONED, ERROR.
package command

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"
)

// AbandonedMessage is recorded on commands the reaper times out.
const AbandonedMessage = "command abandoned after timeout; check the note application connection"

// Config controls queue workers and the reaper.
type Config struct {
	Workers       int           // concurrent executors pulling from the queue
	PollInterval  time.Duration // how often an idle worker checks for NEW commands
	AbandonAfter  time.Duration // age at which a non-terminal command is abandoned
	SweepInterval time.Duration // how often the reaper runs
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.AbandonAfter <= 0 {
		c.AbandonAfter = 30 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Second
	}
	return c
}

// Queue accepts commands, schedules them onto a worker pool, and answers
// status queries. Submit is non-blocking; callers poll Status (or use Wait)
// until the record reaches a terminal state.
type Queue struct {
	commands store.CommandStore
	executor *Executor
	cfg      Config

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewQueue creates a queue over the given store and executor.
func NewQueue(commands store.CommandStore, executor *Executor, cfg Config) *Queue {
	return &Queue{
		commands: commands,
		executor: executor,
		cfg:      cfg.withDefaults(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start launches the worker pool and the reaper. Safe to call once.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.worker(i)
		}
		q.wg.Add(1)
		go q.reaper()
		slog.Info("command queue started", "workers", q.cfg.Workers, "abandon_after", q.cfg.AbandonAfter)
	})
}

// Stop shuts the workers and reaper down and waits for them to drain.
// In-flight executions finish; unclaimed commands stay NEW for the reaper
// on a future run.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stop)
		q.wg.Wait()
		slog.Info("command queue stopped")
	})
}

// Submit validates and persists a command in status NEW and returns its id
// immediately; execution happens asynchronously on the worker pool.
func (q *Queue) Submit(ctx context.Context, typ store.CommandType, content store.CommandContent) (string, error) {
	if !typ.Valid() {
		return "", scrivoerr.Errorf(scrivoerr.CodeCommandTypeUnsupported, "unknown command type %q", typ)
	}

	now := time.Now().UTC()
	cmd := &store.Command{
		ID:        uuid.New().String(),
		Type:      typ,
		Content:   content,
		Status:    store.CommandStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.commands.Create(ctx, cmd); err != nil {
		return "", err
	}

	// Nudge an idle worker so submission latency is not bound to the poll
	// interval. Non-blocking: a full wake channel means a worker is
	// already about to look.
	select {
	case q.wake <- struct{}{}:
	default:
	}

	slog.Info("command submitted", "command_id", cmd.ID, "type", typ)
	return cmd.ID, nil
}

// Status returns the current command record.
func (q *Queue) Status(ctx context.Context, id string) (*store.Command, error) {
	return q.commands.Get(ctx, id)
}

// Wait polls Status at the given interval until the command is terminal or
// the context expires. It exists for callers that want the synchronous
// wrapper contract; the queue itself never blocks on it.
func (q *Queue) Wait(ctx context.Context, id string, interval time.Duration) (*store.Command, error) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cmd, err := q.commands.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cmd.Status.Terminal() {
			return cmd, nil
		}

		select {
		case <-ctx.Done():
			return nil, scrivoerr.Wrap(ctx.Err(), scrivoerr.CodeCommandQueueStopped, "waiting for command", scrivoerr.FieldCommandID(id))
		case <-ticker.C:
		}
	}
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain everything claimable before going back to sleep.
		for {
			cmd, err := q.commands.ClaimNext(context.Background())
			if err != nil {
				slog.Error("claiming command failed", "worker", n, "error", err)
				break
			}
			if cmd == nil {
				break
			}
			q.run(cmd)
		}

		select {
		case <-q.stop:
			return
		case <-q.wake:
		case <-ticker.C:
		}
	}
}

// run executes one claimed command and records its terminal status.
func (q *Queue) run(cmd *store.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.AbandonAfter)
	defer cancel()

	slog.Debug("executing command", "command_id", cmd.ID, "type", cmd.Type)

	if err := q.executor.Execute(ctx, cmd); err != nil {
		slog.Warn("command failed", "command_id", cmd.ID, "type", cmd.Type, "error", err)
		if ferr := q.commands.Finish(context.Background(), cmd.ID, store.CommandStatusError, err.Error()); ferr != nil {
			slog.Error("recording command failure", "command_id", cmd.ID, "error", ferr)
		}
		return
	}

	if err := q.commands.Finish(context.Background(), cmd.ID, store.CommandStatusCompleted, ""); err != nil {
		// Lost the race with the reaper; the terminal status stands.
		slog.Error("recording command completion", "command_id", cmd.ID, "error", err)
		return
	}
	slog.Info("command completed", "command_id", cmd.ID, "type", cmd.Type)
}

func (q *Queue) reaper() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-q.cfg.AbandonAfter)
			n, err := q.commands.AbandonStale(context.Background(), cutoff, AbandonedMessage)
			if err != nil {
				slog.Error("reaper sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("abandoned stale commands", "count", n, "older_than", q.cfg.AbandonAfter)
			}
		}
	}
}
