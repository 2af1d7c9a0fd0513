package collection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mediamanager/mstore/lib/db/engines/memory"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/mediamanager/mstore/lib/serializer"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/mediamanager/mstore/lib/store/lstore"
	"github.com/mediamanager/mstore/lib/store/rstore"
	"github.com/mediamanager/mstore/lib/store/rstore/rstoretest"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Title string `json:"title"`
}

func newLocal(t *testing.T) *lstore.Store {
	s, err := lstore.NewWithDB(memory.NewVolatile())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// rangeOnly hides the Scan method of the wrapped store.
type rangeOnly struct {
	store.IStore
}

// failingGet fails every Get.
type failingGet struct {
	store.IStore
}

func (failingGet) Get(context.Context, string) (string, bool, error) {
	return "", false, store.NewError(store.RetCRequestFailed, "boom")
}

func nextEvent[T any](t *testing.T, sub *Subscription[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return Event[T]{}
}

func TestGetSetDrop(t *testing.T) {
	ctx := context.Background()
	c := New[item](newLocal(t), "todo/")

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", item{Title: "first"}))
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, item{Title: "first"}, v)

	require.NoError(t, c.Set(ctx, "a", item{Title: "second"}))
	v, _, _ = c.Get(ctx, "a")
	assert.Equal(t, "second", v.Title)

	require.NoError(t, c.Drop(ctx, "a"))
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	// dropping again is fine
	require.NoError(t, c.Drop(ctx, "a"))
}

func TestKeysArePrefixed(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	c := New[item](s, "media/")

	require.NoError(t, c.Set(ctx, "abc", item{Title: "x"}))

	raw, ok, err := s.Get(ctx, "media/abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"title":"x"}`, raw)
	assert.Equal(t, "media/", c.Prefix())
}

func TestListIgnoresOtherPrefixes(t *testing.T) {
	ctx := context.Background()

	for name, s := range map[string]store.IStore{
		"scan":  newLocal(t),
		"range": rangeOnly{newLocal(t)},
	} {
		t.Run(name, func(t *testing.T) {
			media := New[item](s, "media/")
			todo := New[item](s, "todo/")

			require.NoError(t, media.Set(ctx, "m1", item{Title: "movie"}))
			require.NoError(t, media.Set(ctx, "m2", item{Title: "song"}))
			require.NoError(t, todo.Set(ctx, "t1", item{Title: "task"}))

			list, err := media.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[ident.ID]item{
				"m1": {Title: "movie"},
				"m2": {Title: "song"},
			}, list)

			ids, err := todo.IDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []ident.ID{"t1"}, ids)

			n, err := media.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestUndecodableRecordsAreAbsent(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	c := New[item](s, "media/")

	require.NoError(t, s.Set(ctx, "media/broken", "not json"))
	require.NoError(t, c.Set(ctx, "ok", item{Title: "fine"}))

	_, ok, err := c.Get(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Contains(t, list, ident.ID("ok"))

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ident.ID{"broken", "ok"}, ids)
}

func TestStorageErrorIsNotAbsence(t *testing.T) {
	c := New[item](failingGet{newLocal(t)}, "media/")

	_, ok, err := c.Get(context.Background(), "a")
	assert.False(t, ok)
	assert.ErrorIs(t, err, store.ErrRequestFailed)
}

func TestEncodeFailureWritesNothing(t *testing.T) {
	type bad struct {
		C chan int
	}
	ctx := context.Background()
	s := newLocal(t)
	c := New[bad](s, "bad/")
	sub := c.Subscribe()
	defer sub.Close()

	err := c.Set(ctx, "x", bad{C: make(chan int)})
	require.Error(t, err)
	assert.Equal(t, store.RetCInternalError, store.CodeOf(err))

	has, err := s.Has(ctx, "bad/x")
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, 0, sub.Pending())
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	c := New[item](newLocal(t), "media/")

	require.NoError(t, c.Insert(ctx, "a", item{Title: "one"}))

	err := c.Insert(ctx, "a", item{Title: "two"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	v, _, _ := c.Get(ctx, "a")
	assert.Equal(t, "one", v.Title)
}

func TestSubscriptionCreateOnly(t *testing.T) {
	ctx := context.Background()
	c := New[item](newLocal(t), "media/")
	sub := c.Subscribe()
	defer sub.Close()

	require.NoError(t, c.Set(ctx, "id1", item{Title: "v1"}))
	ev := nextEvent(t, sub)
	assert.Equal(t, Event[item]{Kind: EventAssign, ID: "id1", Value: item{Title: "v1"}}, ev)

	// an update of an existing record is silent: the next event is the delete
	require.NoError(t, c.Set(ctx, "id1", item{Title: "v2"}))
	require.NoError(t, c.Drop(ctx, "id1"))
	ev = nextEvent(t, sub)
	assert.Equal(t, EventDelete, ev.Kind)
	assert.Equal(t, ident.ID("id1"), ev.ID)

	// dropping an absent record is silent as well
	require.NoError(t, c.Drop(ctx, "id1"))
	require.NoError(t, c.Set(ctx, "id2", item{Title: "v3"}))
	ev = nextEvent(t, sub)
	assert.Equal(t, EventAssign, ev.Kind)
	assert.Equal(t, ident.ID("id2"), ev.ID)
}

func TestFanOut(t *testing.T) {
	ctx := context.Background()
	c := New[item](newLocal(t), "media/")
	a := c.Subscribe()
	b := c.Subscribe()
	defer a.Close()
	defer b.Close()

	assert.NotEqual(t, a.Handle(), b.Handle())
	assert.Equal(t, 2, c.Subscribers())

	require.NoError(t, c.Set(ctx, "x", item{Title: "x"}))
	assert.Equal(t, ident.ID("x"), nextEvent(t, a).ID)
	assert.Equal(t, ident.ID("x"), nextEvent(t, b).ID)
}

func TestSlowSubscriberDoesNotBlockWriters(t *testing.T) {
	ctx := context.Background()
	c := New[item](newLocal(t), "media/")
	sub := c.Subscribe()
	defer sub.Close()

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, c.Set(ctx, ident.ID(fmt.Sprintf("id-%03d", i)), item{}))
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, EventAssign, nextEvent(t, sub).Kind)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	c := New[item](newLocal(t), "media/")
	sub := c.Subscribe()
	other := c.Subscribe()
	defer other.Close()

	assert.True(t, c.Unsubscribe(sub.Handle()))
	assert.False(t, c.Unsubscribe(sub.Handle()))
	assert.Equal(t, 1, c.Subscribers())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", item{Title: "a"}))
	assert.Equal(t, ident.ID("a"), nextEvent(t, other).ID)
}

func TestCloseReleasesSubscribers(t *testing.T) {
	c := New[item](newLocal(t), "media/")
	a := c.Subscribe()
	b := c.Subscribe()

	c.Close()
	assert.Equal(t, 0, c.Subscribers())

	_, ok := <-a.Events()
	assert.False(t, ok)
	_, ok = <-b.Events()
	assert.False(t, ok)

	late := c.Subscribe()
	_, ok = <-late.Events()
	assert.False(t, ok)
}

func TestWithCodec(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	c := New[item](s, "media/", WithCodec(serializer.NewYAMLCodec[item]()))

	require.NoError(t, c.Set(ctx, "a", item{Title: "x"}))
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", v.Title)
	assert.Equal(t, "yaml", c.Codec().Name())
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	srv := rstoretest.New()
	defer srv.Close()
	remote, err := rstore.New(rstore.Options{Origin: srv.URL, Registry: gometrics.NewRegistry()})
	require.NoError(t, err)

	srv.Put("a", `{"title":"remote a"}`)
	srv.Put("b", `{"title":"remote b"}`)
	srv.Put("junk", "not a record")

	c := New[item](newLocal(t), "media/")
	require.NoError(t, c.Set(ctx, "a", item{Title: "local a"}))
	require.NoError(t, c.Set(ctx, "c", item{Title: "local c"}))

	n, err := c.Sync(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[ident.ID]item{
		"a": {Title: "remote a"},
		"b": {Title: "remote b"},
		"c": {Title: "local c"},
	}, list)
}

func TestSyncDecodesRemoteAsJSON(t *testing.T) {
	ctx := context.Background()
	srv := rstoretest.New()
	defer srv.Close()
	remote, err := rstore.New(rstore.Options{Origin: srv.URL, Registry: gometrics.NewRegistry()})
	require.NoError(t, err)
	srv.Put("a", `{"title":"remote a"}`)

	c := New[item](newLocal(t), "media/", WithCodec(serializer.NewGOBCodec[item]()))
	assert.Equal(t, "json", c.WireCodec().Name())

	n, err := c.Sync(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "remote a", v.Title)
}

func TestSubscribeRacingClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := New[item](newLocal(t), "media/")
		subs := make(chan *Subscription[item], 1)
		go func() { subs <- c.Subscribe() }()
		c.Close()
		sub := <-subs

		// whichever side won, the subscription ends up released
		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("subscription not released after Close")
		}
		assert.Equal(t, 0, c.Subscribers())
	}
}

func TestSyncPropagatesTransportErrors(t *testing.T) {
	srv := rstoretest.New()
	defer srv.Close()
	remote, err := rstore.New(rstore.Options{Origin: srv.URL, Registry: gometrics.NewRegistry()})
	require.NoError(t, err)
	srv.FailWith(500)

	c := New[item](newLocal(t), "media/")
	_, err = c.Sync(context.Background(), remote)
	require.Error(t, err)
	var se *store.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, store.RetCRequestFailed, se.Code)
}
