// Package syncer pushes local edits to the backend without ever blocking
// the editor. Writes are queued per subtree chain, dispatched FIFO within
// a chain and concurrently across chains, retried on transient failures,
// and reported back over a results channel that the UI loop drains.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"rhizome/internal/api"
)

// TempPrefix marks client-assigned uids that the backend will replace.
const TempPrefix = "tmp-"

// IsTemp reports whether a uid is a client-side placeholder.
func IsTemp(uid string) bool { return strings.HasPrefix(uid, TempPrefix) }

// Submitter is the slice of the API client the engine needs.
type Submitter interface {
	Write(ctx context.Context, action api.WriteAction) (string, error)
}

type completion struct {
	write  *Write
	newUID string
	err    error
}

type command struct {
	retry   uint64
	discard uint64
}

// Engine owns the write queue. Enqueue, Retry, and Discard may be called
// from the UI goroutine at any time; all queue state lives inside the
// Run loop, so no locks are needed.
type Engine struct {
	// Tunable before Run is called.
	MaxAttempts int
	Backoff     time.Duration
	Cooldown    time.Duration

	client Submitter
	log    *slog.Logger

	nextID   atomic.Uint64
	pending  atomic.Int64
	failedCt atomic.Int64

	enqueueCh chan Write
	cmdCh     chan command
	results   chan Result
}

func NewEngine(client Submitter, log *slog.Logger) *Engine {
	return &Engine{
		MaxAttempts: 3,
		Backoff:     250 * time.Millisecond,
		Cooldown:    2 * time.Second,
		client:      client,
		log:         log,
		enqueueCh:   make(chan Write, 256),
		cmdCh:       make(chan command, 16),
		results:     make(chan Result, 256),
	}
}

// Results delivers one Result per finished write. The UI loop must drain
// this channel; it is buffered so the engine never stalls on a slow
// consumer for long.
func (e *Engine) Results() <-chan Result { return e.results }

// Enqueue adds a write to its chain and returns the assigned id.
func (e *Engine) Enqueue(w Write) uint64 {
	w.ID = e.nextID.Add(1)
	w.Status = StatusQueued
	e.pending.Add(1)
	e.enqueueCh <- w
	return w.ID
}

// Retry unblocks a failed write and re-dispatches it.
func (e *Engine) Retry(id uint64) { e.cmdCh <- command{retry: id} }

// Discard drops a failed write, unblocking its chain. The local block
// stays dirty until a later write or refresh settles it.
func (e *Engine) Discard(id uint64) { e.cmdCh <- command{discard: id} }

// PendingCount is the number of writes not yet confirmed or discarded.
func (e *Engine) PendingCount() int { return int(e.pending.Load()) }

// FailedCount is the number of writes parked in the failed state.
func (e *Engine) FailedCount() int { return int(e.failedCt.Load()) }

// Run dispatches until ctx is cancelled. It must be called exactly once.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	queues := make(map[string][]*Write)
	inFlight := make(map[string]bool)
	rewrites := make(map[string]string)
	failed := make(map[uint64]*Write)
	doneCh := make(chan completion, 64)

	dispatch := func(chain string) {
		if inFlight[chain] {
			return
		}
		q := queues[chain]
		if len(q) == 0 {
			delete(queues, chain)
			return
		}
		w := q[0]
		if w.Status == StatusFailed {
			return
		}
		queues[chain] = q[1:]
		w.Status = StatusInFlight
		w.Action = rewritten(w.Action, rewrites)
		if perm, ok := rewrites[w.BlockUID]; ok {
			w.BlockUID = perm
		}
		inFlight[chain] = true
		g.Go(func() error {
			uid, err := e.submit(ctx, w)
			select {
			case doneCh <- completion{write: w, newUID: uid, err: err}:
			case <-ctx.Done():
			}
			return nil
		})
	}

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			return ctx.Err()

		case w := <-e.enqueueCh:
			if perm, ok := rewrites[w.ChainKey]; ok {
				w.ChainKey = perm
			}
			cp := w
			queues[w.ChainKey] = append(queues[w.ChainKey], &cp)
			dispatch(w.ChainKey)

		case done := <-doneCh:
			w := done.write
			inFlight[w.ChainKey] = false
			if done.err == nil {
				w.Status = StatusConfirmed
				e.pending.Add(-1)
				if done.newUID != "" && IsTemp(w.BlockUID) {
					rewrites[w.BlockUID] = done.newUID
					e.mergeChain(queues, inFlight, w.BlockUID, done.newUID)
					if w.ChainKey == w.BlockUID {
						w.ChainKey = done.newUID
					}
				}
				e.emit(ctx, Result{ID: w.ID, BlockUID: w.BlockUID, Revision: w.Revision, NewUID: done.newUID})
				dispatch(w.ChainKey)
				break
			}
			if isConflict(done.err) {
				w.Status = StatusConfirmed
				e.pending.Add(-1)
				e.log.Warn("write dropped after conflict", "id", w.ID, "uid", w.BlockUID, "err", done.err)
				e.emit(ctx, Result{ID: w.ID, BlockUID: w.BlockUID, Revision: w.Revision, Err: done.err, Conflict: true})
				dispatch(w.ChainKey)
				break
			}
			w.Status = StatusFailed
			w.Err = done.err
			failed[w.ID] = w
			e.failedCt.Add(1)
			queues[w.ChainKey] = append([]*Write{w}, queues[w.ChainKey]...)
			e.log.Error("write failed, chain blocked", "id", w.ID, "uid", w.BlockUID, "chain", w.ChainKey, "err", done.err)
			e.emit(ctx, Result{ID: w.ID, BlockUID: w.BlockUID, Revision: w.Revision, Err: done.err})

		case cmd := <-e.cmdCh:
			if w, ok := failed[cmd.retry]; ok {
				delete(failed, cmd.retry)
				e.failedCt.Add(-1)
				w.Status = StatusQueued
				w.Attempts = 0
				w.Err = nil
				dispatch(w.ChainKey)
			}
			if w, ok := failed[cmd.discard]; ok {
				delete(failed, cmd.discard)
				e.failedCt.Add(-1)
				e.pending.Add(-1)
				q := queues[w.ChainKey]
				if len(q) > 0 && q[0] == w {
					queues[w.ChainKey] = q[1:]
				}
				dispatch(w.ChainKey)
			}
		}
	}
}

// submit tries a write with bounded retries on transient errors. Rate
// limits wait out the longer cooldown before the next attempt.
func (e *Engine) submit(ctx context.Context, w *Write) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		w.Attempts++
		uid, err := e.client.Write(ctx, w.Action)
		if err == nil {
			return uid, nil
		}
		lastErr = err
		if !api.Transient(err) {
			return "", err
		}
		if attempt == e.MaxAttempts {
			break
		}
		delay := time.Duration(attempt) * e.Backoff
		if errors.Is(err, api.ErrRateLimited) {
			delay = e.Cooldown
		}
		e.log.Debug("write retry", "id", w.ID, "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (e *Engine) emit(ctx context.Context, r Result) {
	select {
	case e.results <- r:
	case <-ctx.Done():
	}
}

// mergeChain folds the queue that accumulated under a temporary uid into
// the chain named by the permanent one, preserving order.
func (e *Engine) mergeChain(queues map[string][]*Write, inFlight map[string]bool, tmp, perm string) {
	if tmp == perm {
		return
	}
	old := queues[tmp]
	if len(old) == 0 && !inFlight[tmp] {
		delete(queues, tmp)
		return
	}
	for _, w := range old {
		w.ChainKey = perm
	}
	queues[perm] = append(old, queues[perm]...)
	delete(queues, tmp)
	if inFlight[tmp] {
		inFlight[perm] = true
		delete(inFlight, tmp)
	}
}

// rewritten maps temporary uids in an action to their permanent
// replacements. Both the block itself and its parent location may need
// the swap.
func rewritten(a api.WriteAction, rewrites map[string]string) api.WriteAction {
	if len(rewrites) == 0 {
		return a
	}
	if a.Block != nil {
		if perm, ok := rewrites[a.Block.UID]; ok {
			b := *a.Block
			b.UID = perm
			a.Block = &b
		}
	}
	if a.Location != nil {
		if perm, ok := rewrites[a.Location.ParentUID]; ok {
			l := *a.Location
			l.ParentUID = perm
			a.Location = &l
		}
	}
	return a
}

// isConflict is a permanent rejection that is not an auth problem: the
// backend refused the write and retrying cannot help, usually because a
// concurrent editor deleted or moved the target.
func isConflict(err error) bool {
	if api.Transient(err) {
		return false
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return false
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500
	}
	return errors.Is(err, api.ErrNotFound)
}
