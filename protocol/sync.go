// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"time"

	"github.com/dragon-chat/dragon/lib/netutil"
	"github.com/dragon-chat/dragon/messaging"
)

// syncLoop long-polls /sync until ctx is cancelled or the token is
// revoked. Transient failures back off exponentially and close idle
// connections so the next attempt opens a fresh socket.
func (a *Adapter) syncLoop(ctx context.Context, session *messaging.Session, events chan<- Event) {
	var (
		since    string
		phase    = PhaseStopped
		prepared bool
		backoff  = a.config.RetryBackoff
		filter   = timelineFilter(a.config.TimelineLimit)
	)

	transition := func(next Phase, err error) bool {
		if next == phase && err == nil {
			return true
		}
		phase = next
		return a.emit(ctx, events, SyncStateChanged{Phase: next, Err: err})
	}

	for {
		options := messaging.SyncOptions{Since: since, Filter: filter}
		if prepared {
			options.Timeout = int(a.config.LongPollTimeout / time.Millisecond)
			options.SetTimeout = true
		}

		response, err := session.Sync(ctx, options)
		if err != nil {
			if ctx.Err() != nil {
				a.emitFinal(events, SyncStateChanged{Phase: PhaseStopped})
				return
			}
			if messaging.IsAuthFailure(err) {
				a.logger.Warn("sync stopped: access token rejected", "user_id", session.UserID(), "error", err)
				a.emitFinal(events, SyncStateChanged{Phase: PhaseError, Err: classify(opSync, err)})
				return
			}

			if netutil.IsTransient(err) {
				a.logger.Debug("sync failed, retrying", "error", err, "backoff", backoff)
			} else {
				a.logger.Warn("sync failed, retrying", "error", err, "backoff", backoff)
			}
			session.CloseIdleConnections()
			if !transition(PhaseReconnecting, nil) {
				return
			}
			select {
			case <-ctx.Done():
				a.emitFinal(events, SyncStateChanged{Phase: PhaseStopped})
				return
			case <-a.config.Clock.After(backoff):
			}
			backoff = min(backoff*2, a.config.MaxRetryBackoff)
			continue
		}
		backoff = a.config.RetryBackoff

		for _, event := range TranslateSync(response, a.logger) {
			if !a.emit(ctx, events, event) {
				return
			}
		}
		since = response.NextBatch

		next := PhaseSyncing
		if !prepared {
			prepared = true
			next = PhasePrepared
			a.logger.Info("initial sync complete", "user_id", session.UserID(), "next_batch", since)
		}
		if !transition(next, nil) {
			return
		}
	}
}

// emit delivers event unless ctx is cancelled first. Returns false when
// the loop should exit.
func (a *Adapter) emit(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		a.emitFinal(events, SyncStateChanged{Phase: PhaseStopped})
		return false
	}
}

// emitFinal delivers a terminal event if there is room for it. Nobody
// may be reading any more, so it never blocks.
func (a *Adapter) emitFinal(events chan<- Event, event Event) {
	select {
	case events <- event:
	default:
	}
}
