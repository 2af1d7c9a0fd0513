package collection

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/mediamanager/mstore/lib/serializer"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/oklog/ulid/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("collection")

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// EventKind tells what happened to a record.
type EventKind uint8

const (
	EventAssign EventKind = iota + 1 // a record was created
	EventDelete                      // a record was dropped
)

func (k EventKind) String() string {
	switch k {
	case EventAssign:
		return "assign"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a mutation notification. Value is only set for EventAssign.
type Event[T any] struct {
	Kind  EventKind
	ID    ident.ID
	Value T
}

// Handle identifies a subscription within its collection.
type Handle string

// Subscription receives the events of one collection until it is closed.
type Subscription[T any] struct {
	handle Handle
	q      *queue[Event[T]]
	owner  *Collection[T]
}

// Events returns the channel events are delivered on. It is closed once the
// subscription is released.
func (s *Subscription[T]) Events() <-chan Event[T] {
	return s.q.Recv()
}

// Handle returns the handle to pass to Collection.Unsubscribe.
func (s *Subscription[T]) Handle() Handle {
	return s.handle
}

// Close releases the subscription. Pending events are discarded.
func (s *Subscription[T]) Close() {
	s.owner.Unsubscribe(s.handle)
}

// Pending returns the number of queued events not yet received.
func (s *Subscription[T]) Pending() int {
	return s.q.Len()
}

// --------------------------------------------------------------------------
// Collection
// --------------------------------------------------------------------------

// RecordSource provides the complete record set of a remote collection in one request,
// keyed by record ID. rstore.Store implements it.
type RecordSource interface {
	List(ctx context.Context) (map[string]string, error)
}

// scanner is implemented by stores that can range over a key prefix without visiting
// every entry (lstore.Store).
type scanner interface {
	Scan(ctx context.Context, prefix string, fn func(key, value string) bool) error
}

// Collection stores records of type T in an IStore, one entry per record under
// prefix+id.
type Collection[T any] struct {
	store  store.IStore
	prefix string
	codec  serializer.ICodec[T]
	wire   serializer.ICodec[T] // format of records exchanged with the remote

	subs   *xsync.MapOf[Handle, *Subscription[T]]
	closed atomic.Bool

	assigns *metrics.Counter
	deletes *metrics.Counter
}

// Option configures a collection.
type Option[T any] func(*Collection[T])

// WithCodec replaces the default JSON codec of the local entries. Records exchanged
// with the remote stay JSON.
func WithCodec[T any](codec serializer.ICodec[T]) Option[T] {
	return func(c *Collection[T]) {
		c.codec = codec
	}
}

// New creates a collection over s. Records are encoded as JSON unless WithCodec is given.
func New[T any](s store.IStore, prefix string, opts ...Option[T]) *Collection[T] {
	c := &Collection[T]{
		store:   s,
		prefix:  prefix,
		codec:   serializer.NewJSONCodec[T](),
		wire:    serializer.NewJSONCodec[T](),
		subs:    xsync.NewMapOf[Handle, *Subscription[T]](),
		assigns: metrics.GetOrCreateCounter(fmt.Sprintf(`mstore_collection_events_total{prefix=%q,kind="assign"}`, prefix)),
		deletes: metrics.GetOrCreateCounter(fmt.Sprintf(`mstore_collection_events_total{prefix=%q,kind="delete"}`, prefix)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prefix returns the key prefix of the collection.
func (c *Collection[T]) Prefix() string {
	return c.prefix
}

// Codec returns the codec records are stored with.
func (c *Collection[T]) Codec() serializer.ICodec[T] {
	return c.codec
}

// WireCodec returns the codec of records exchanged with the remote. It is JSON
// regardless of the local codec.
func (c *Collection[T]) WireCodec() serializer.ICodec[T] {
	return c.wire
}

func (c *Collection[T]) key(id ident.ID) string {
	return c.prefix + string(id)
}

// Get returns the record stored under id. A record that cannot be decoded is logged and
// reported as absent. Storage failures are returned as errors.
func (c *Collection[T]) Get(ctx context.Context, id ident.ID) (T, bool, error) {
	var zero T
	raw, ok, err := c.store.Get(ctx, c.key(id))
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		Logger.Warningf("decode %s%s: %v", c.prefix, id, err)
		return zero, false, nil
	}
	return v, true, nil
}

// scan visits the raw entries of the collection with the prefix stripped from the key.
func (c *Collection[T]) scan(ctx context.Context, fn func(id ident.ID, raw string) bool) error {
	visit := func(key, value string) bool {
		if !strings.HasPrefix(key, c.prefix) {
			return true
		}
		return fn(ident.FromString(key[len(c.prefix):]), value)
	}
	if sc, ok := c.store.(scanner); ok {
		return sc.Scan(ctx, c.prefix, visit)
	}
	return c.store.Range(ctx, visit)
}

// Iterate calls fn for each decodable record until fn returns false. Records that fail
// to decode are logged and skipped.
func (c *Collection[T]) Iterate(ctx context.Context, fn func(id ident.ID, v T) bool) error {
	return c.scan(ctx, func(id ident.ID, raw string) bool {
		v, err := c.codec.Decode(raw)
		if err != nil {
			Logger.Warningf("decode %s%s: %v", c.prefix, id, err)
			return true
		}
		return fn(id, v)
	})
}

// List returns every decodable record of the collection.
func (c *Collection[T]) List(ctx context.Context) (map[ident.ID]T, error) {
	out := make(map[ident.ID]T)
	err := c.Iterate(ctx, func(id ident.ID, v T) bool {
		out[id] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IDs returns the IDs of all entries in the collection, sorted. Entries are not decoded,
// so IDs also lists records Get would report as absent.
func (c *Collection[T]) IDs(ctx context.Context) ([]ident.ID, error) {
	var ids []ident.ID
	err := c.scan(ctx, func(id ident.ID, _ string) bool {
		ids = append(ids, id)
		return true
	})
	if err != nil {
		return nil, err
	}
	ident.Sort(ids)
	return ids, nil
}

// Len returns the number of entries in the collection.
func (c *Collection[T]) Len(ctx context.Context) (int, error) {
	n := 0
	err := c.scan(ctx, func(ident.ID, string) bool {
		n++
		return true
	})
	return n, err
}

// Has reports whether an entry exists under id.
func (c *Collection[T]) Has(ctx context.Context, id ident.ID) (bool, error) {
	return c.store.Has(ctx, c.key(id))
}

// Set stores v under id. Subscribers are notified when the record did not exist
// before; overwriting an existing record emits nothing. If v cannot be encoded
// nothing is written and no event is emitted.
func (c *Collection[T]) Set(ctx context.Context, id ident.ID, v T) error {
	raw, err := c.codec.Encode(v)
	if err != nil {
		Logger.Errorf("encode %s%s: %v", c.prefix, id, err)
		return store.WrapError(store.RetCInternalError, err, "encode %s", id)
	}

	key := c.key(id)
	if c.subs.Size() > 0 {
		exists, err := c.store.Has(ctx, key)
		if err != nil {
			return err
		}
		if !exists {
			c.notify(Event[T]{Kind: EventAssign, ID: id, Value: v})
		}
	}

	return c.store.Set(ctx, key, raw)
}

// Insert stores v under id only if no entry exists yet.
func (c *Collection[T]) Insert(ctx context.Context, id ident.ID, v T) error {
	exists, err := c.Has(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return store.NewError(store.RetCAlreadyExists, fmt.Sprintf("%s%s already exists", c.prefix, id))
	}
	return c.Set(ctx, id, v)
}

// Drop removes the record stored under id. Subscribers are notified when the record
// existed. Dropping an absent record is not an error.
func (c *Collection[T]) Drop(ctx context.Context, id ident.ID) error {
	key := c.key(id)
	if c.subs.Size() > 0 {
		exists, err := c.store.Has(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			c.notify(Event[T]{Kind: EventDelete, ID: id})
		}
	}
	return c.store.Remove(ctx, key)
}

// --------------------------------------------------------------------------
// Subscriptions
// --------------------------------------------------------------------------

// Subscribe registers a new subscriber. Every subscriber gets its own unbounded queue,
// so a slow reader never blocks a writer.
func (c *Collection[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		handle: Handle(ulid.Make().String()),
		q:      newQueue[Event[T]](),
		owner:  c,
	}
	if c.closed.Load() {
		sub.q.Stop()
		return sub
	}
	c.subs.Store(sub.handle, sub)
	if c.closed.Load() {
		// Close ran between the check and the Store
		c.Unsubscribe(sub.handle)
	}
	return sub
}

// Unsubscribe releases the subscription with the given handle. It returns false if
// the handle is unknown.
func (c *Collection[T]) Unsubscribe(h Handle) bool {
	sub, ok := c.subs.LoadAndDelete(h)
	if !ok {
		return false
	}
	sub.q.Stop()
	return true
}

// Subscribers returns the number of registered subscribers.
func (c *Collection[T]) Subscribers() int {
	return c.subs.Size()
}

// Close releases all subscribers. Later subscriptions are closed immediately.
func (c *Collection[T]) Close() {
	c.closed.Store(true)
	c.subs.Range(func(h Handle, _ *Subscription[T]) bool {
		c.Unsubscribe(h)
		return true
	})
}

func (c *Collection[T]) notify(ev Event[T]) {
	switch ev.Kind {
	case EventAssign:
		c.assigns.Inc()
	case EventDelete:
		c.deletes.Inc()
	}
	c.subs.Range(func(_ Handle, sub *Subscription[T]) bool {
		if !sub.q.Push(ev) {
			Logger.Debugf("subscription %s is closed, event %s %s dropped", sub.handle, ev.Kind, ev.ID)
		}
		return true
	})
}

// --------------------------------------------------------------------------
// Bulk sync
// --------------------------------------------------------------------------

// Sync fetches the complete remote record set in one request and stores every record
// locally, replacing local versions. Records that cannot be decoded are logged and
// skipped. Local records unknown to the remote are kept. It returns the number of
// records stored.
func (c *Collection[T]) Sync(ctx context.Context, src RecordSource) (int, error) {
	records, err := src.List(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for id, raw := range records {
		v, err := c.wire.Decode(raw)
		if err != nil {
			Logger.Warningf("sync: skip undecodable record %s: %v", id, err)
			continue
		}
		if err := c.Set(ctx, ident.FromString(id), v); err != nil {
			return n, err
		}
		n++
	}
	Logger.Infof("sync: stored %d of %d remote records under %q", n, len(records), c.prefix)
	return n, nil
}
