package rstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mediamanager/mstore/lib/ident"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/mediamanager/mstore/lib/store/rstore"
	"github.com/mediamanager/mstore/lib/store/rstore/rstoretest"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemote(t *testing.T) (*rstore.Store, *rstoretest.Server) {
	srv := rstoretest.New()
	t.Cleanup(srv.Close)

	s, err := rstore.New(rstore.Options{
		Origin:   srv.URL + "/",
		Timeout:  5 * time.Second,
		Registry: gometrics.NewRegistry(),
	})
	require.NoError(t, err)
	return s, srv
}

func TestNewRejectsBadOrigin(t *testing.T) {
	for _, origin := range []string{"", "localhost:8080", "ftp://host", "http://"} {
		_, err := rstore.New(rstore.Options{Origin: origin})
		assert.Error(t, err, origin)
	}
}

func TestGetSetRemoveHas(t *testing.T) {
	ctx := context.Background()
	s, srv := newRemote(t)

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", `{"title":"a"}`))
	record, ok := srv.Record("a")
	require.True(t, ok)
	assert.Equal(t, `{"title":"a"}`, record)

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"title":"a"}`, v)

	has, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Remove(ctx, "a"))
	has, err = s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has)

	// one request per operation, no retries
	assert.Equal(t, int64(6), srv.Requests())
	assert.Equal(t, int64(1), gometrics.GetOrRegisterTimer("rstore.set", s.Registry()).Count())
}

func TestContentIDsAreEscaped(t *testing.T) {
	ctx := context.Background()
	s, srv := newRemote(t)

	// standard base64 contains '/' and '+'
	id := ident.Generate("some record that hashes to a slash").String()
	key := "a/b+c=="
	for _, k := range []string{id, key} {
		require.NoError(t, s.Set(ctx, k, `"v"`))
		v, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok, k)
		assert.Equal(t, `"v"`, v)
	}
	assert.ElementsMatch(t, []string{id, key}, srv.Keys())
}

func TestStatusMapping(t *testing.T) {
	ctx := context.Background()
	s, srv := newRemote(t)
	srv.FailWith(http.StatusInternalServerError)

	_, _, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrRequestFailed)

	assert.ErrorIs(t, s.Set(ctx, "a", "v"), store.ErrRequestFailed)
	assert.ErrorIs(t, s.Remove(ctx, "a"), store.ErrRequestFailed)

	_, err = s.Has(ctx, "a")
	assert.ErrorIs(t, err, store.ErrRequestFailed)

	_, err = s.List(ctx)
	assert.ErrorIs(t, err, store.ErrRequestFailed)

	_, err = s.Reconcile(ctx, []string{"a"})
	assert.ErrorIs(t, err, store.ErrRequestFailed)

	// a 404 on set is not success either
	srv.FailWith(http.StatusNotFound)
	assert.ErrorIs(t, s.Set(ctx, "a", "v"), store.ErrRequestFailed)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin := srv.URL
	srv.Close()

	s, err := rstore.New(rstore.Options{Origin: origin, Registry: gometrics.NewRegistry()})
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "a")
	assert.ErrorIs(t, err, store.ErrRequestFailed)
	assert.Equal(t, int64(1), gometrics.GetOrRegisterCounter("rstore.errors", s.Registry()).Count())
}

func TestTimeoutAndCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	s, err := rstore.New(rstore.Options{Origin: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "a")
	assert.ErrorIs(t, err, store.ErrRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s, err = rstore.New(rstore.Options{Origin: srv.URL})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Has(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListAndRange(t *testing.T) {
	ctx := context.Background()
	s, srv := newRemote(t)
	srv.Put("b", `{"title":"b"}`)
	srv.Put("a", `{"title":"a"}`)

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.JSONEq(t, `{"title":"a"}`, records["a"])

	var keys []string
	require.NoError(t, s.Range(ctx, func(key, _ string) bool {
		keys = append(keys, key)
		return true
	}))
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	s, srv := newRemote(t)
	srv.Put("B", `{"title":"b"}`)
	srv.Put("C", `{"title":"c"}`)

	resp, err := s.Reconcile(ctx, []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, resp.Unknown)
	require.Contains(t, resp.Missing, "C")
	assert.JSONEq(t, `{"title":"c"}`, resp.Missing["C"])
	assert.NotContains(t, resp.Missing, "B")

	resp, err = s.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Missing, 2)
	assert.Empty(t, resp.Unknown)
}

func TestUpdateField(t *testing.T) {
	ctx := context.Background()
	s, srv := newRemote(t)
	srv.Put("a", `{"title":"old","format":"mp4"}`)

	require.NoError(t, s.UpdateField(ctx, "a", "title", "new & improved"))
	record, _ := srv.Record("a")
	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(record), &fields))
	assert.Equal(t, "new & improved", fields["title"])
	assert.Equal(t, "mp4", fields["format"])

	assert.ErrorIs(t, s.UpdateField(ctx, "missing", "title", "x"), store.ErrNotFound)
}

func TestEvents(t *testing.T) {
	s, srv := newRemote(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu     sync.Mutex
		events []rstore.Event
	)
	done := make(chan error, 1)
	go func() {
		done <- s.Events(ctx, func(ev rstore.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		})
	}()

	require.Eventually(t, func() bool { return srv.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Set(ctx, "a", `{"title":"a"}`))
	require.NoError(t, s.UpdateField(ctx, "a", "title", "b"))
	require.NoError(t, s.Remove(ctx, "a"))
	srv.Publish(rstore.Event{Kind: rstore.EventNull})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, rstore.EventCreate, events[0].Kind)
	assert.Equal(t, "a", events[0].ID)
	assert.JSONEq(t, `{"title":"a"}`, events[0].Record)
	assert.Equal(t, rstore.Event{Kind: rstore.EventUpdate, ID: "a", Field: "title", Value: "b"}, events[1])
	assert.Equal(t, rstore.Event{Kind: rstore.EventForget, ID: "a"}, events[2])
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Events did not return after cancel")
	}
}
