package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/collection"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/mediamanager/mstore/lib/store"
)

var Logger = logger.GetLogger("sync")

// Reconciler answers which records the caller lacks and which of the caller's IDs the
// remote does not know. rstore.Store implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, ids []string) (store.SyncResponse, error)
}

// Sharer accepts records pushed by the share policy. rstore.Store implements it.
type Sharer interface {
	Set(ctx context.Context, key, value string) error
}

// Policy decides what happens to local records the remote does not know.
type Policy uint8

const (
	// PolicyPrune drops them locally: the remote is authoritative for existence.
	PolicyPrune Policy = iota
	// PolicyShare pushes them to the remote.
	PolicyShare
)

func (p Policy) String() string {
	switch p {
	case PolicyPrune:
		return "prune"
	case PolicyShare:
		return "share"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "prune" or "share". The empty string selects PolicyPrune.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "prune":
		return PolicyPrune, nil
	case "share":
		return PolicyShare, nil
	default:
		return 0, fmt.Errorf("unknown sync policy %q (want prune or share)", s)
	}
}

// Report summarizes one reconciliation run.
type Report struct {
	Pulled   int // missing records stored locally
	Skipped  int // missing records that could not be decoded
	Dropped  int // local records removed (PolicyPrune)
	Shared   int // local records pushed to the remote (PolicyShare)
	Duration time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("pulled=%d skipped=%d dropped=%d shared=%d took=%s",
		r.Pulled, r.Skipped, r.Dropped, r.Shared, r.Duration)
}

// Engine reconciles a local collection against a remote.
type Engine[T any] struct {
	local  *collection.Collection[T]
	remote Reconciler
	sharer Sharer
	policy Policy

	runs atomic.Uint64

	runsTotal     *metrics.Counter
	failuresTotal *metrics.Counter
	pulledTotal   *metrics.Counter
	droppedTotal  *metrics.Counter
	sharedTotal   *metrics.Counter
}

// New creates an engine. PolicyShare requires the remote to implement Sharer.
func New[T any](local *collection.Collection[T], remote Reconciler, policy Policy) (*Engine[T], error) {
	e := &Engine[T]{
		local:  local,
		remote: remote,
		policy: policy,
	}
	if policy == PolicyShare {
		sharer, ok := remote.(Sharer)
		if !ok {
			return nil, errors.New("share policy needs a remote that accepts records")
		}
		e.sharer = sharer
	}

	label := fmt.Sprintf(`{prefix=%q}`, local.Prefix())
	e.runsTotal = metrics.GetOrCreateCounter("mstore_sync_runs_total" + label)
	e.failuresTotal = metrics.GetOrCreateCounter("mstore_sync_failures_total" + label)
	e.pulledTotal = metrics.GetOrCreateCounter("mstore_sync_pulled_total" + label)
	e.droppedTotal = metrics.GetOrCreateCounter("mstore_sync_dropped_total" + label)
	e.sharedTotal = metrics.GetOrCreateCounter("mstore_sync_shared_total" + label)
	return e, nil
}

// Policy returns the policy for records unknown to the remote.
func (e *Engine[T]) Policy() Policy {
	return e.policy
}

// Runs returns the number of completed runs, failed ones included.
func (e *Engine[T]) Runs() uint64 {
	return e.runs.Load()
}

// Run performs one reconciliation: it sends the local IDs to the remote, stores every
// record the remote reports missing and then applies the policy to every local ID the
// remote does not know. Runs are not atomic; a failed run leaves the records it already
// processed in place and running again converges.
func (e *Engine[T]) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report, err := e.run(ctx)
	report.Duration = time.Since(start)

	e.runs.Add(1)
	e.runsTotal.Inc()
	e.pulledTotal.Add(report.Pulled)
	e.droppedTotal.Add(report.Dropped)
	e.sharedTotal.Add(report.Shared)
	if err != nil {
		e.failuresTotal.Inc()
		return report, err
	}
	Logger.Infof("sync %s: %s", e.local.Prefix(), report)
	return report, nil
}

func (e *Engine[T]) run(ctx context.Context) (Report, error) {
	var report Report

	ids, err := e.local.IDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list local ids: %w", err)
	}

	resp, err := e.remote.Reconcile(ctx, ident.Strings(ids))
	if err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}

	codec := e.local.WireCodec()
	for id, raw := range resp.Missing {
		v, err := codec.Decode(raw)
		if err != nil {
			Logger.Warningf("skip undecodable remote record %s: %v", id, err)
			report.Skipped++
			continue
		}
		if err := e.local.Set(ctx, ident.FromString(id), v); err != nil {
			return report, fmt.Errorf("store %s: %w", id, err)
		}
		report.Pulled++
	}

	for _, raw := range resp.Unknown {
		id := ident.FromString(raw)
		switch e.policy {
		case PolicyShare:
			shared, err := e.share(ctx, id)
			if err != nil {
				return report, err
			}
			if shared {
				report.Shared++
			}
		default:
			if err := e.local.Drop(ctx, id); err != nil {
				return report, fmt.Errorf("drop %s: %w", id, err)
			}
			report.Dropped++
		}
	}
	return report, nil
}

// share pushes the local record to the remote. Records that are gone or cannot be
// decoded locally are skipped.
func (e *Engine[T]) share(ctx context.Context, id ident.ID) (bool, error) {
	v, ok, err := e.local.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}
	raw, err := e.local.WireCodec().Encode(v)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", id, err)
	}
	if err := e.sharer.Set(ctx, id.String(), raw); err != nil {
		return false, fmt.Errorf("share %s: %w", id, err)
	}
	return true, nil
}

// Loop runs the engine once immediately, then every interval and whenever a record is
// created or dropped in the local collection. Triggers that arrive while a run is in
// progress collapse into one pending run. Failed runs are logged and the loop keeps
// going. Loop returns when ctx is done.
//
// Records pulled by a run raise events themselves, so a run that changed the collection
// is followed by one more run that finds nothing to do.
func (e *Engine[T]) Loop(ctx context.Context, interval time.Duration) {
	sub := e.local.Subscribe()
	defer sub.Close()

	trigger := make(chan struct{}, 1)
	go func() {
		for range sub.Events() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := e.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			Logger.Errorf("sync %s failed: %v", e.local.Prefix(), err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-trigger:
		}
	}
}
