// Package rstoretest provides an in-process fake of the remote media API for tests.
//
// The fake keeps records in memory and implements the same routes and status codes the
// remote store expects, including the reconcile endpoint and the event stream.
package rstoretest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/mediamanager/mstore/lib/store/rstore"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rstoretest")

// Server is a running fake remote. Use URL as the origin of an rstore.Store.
type Server struct {
	*httptest.Server

	mu      sync.RWMutex
	records map[string]string

	requests atomic.Int64
	failWith atomic.Int32

	subs   *xsync.MapOf[uint64, chan rstore.Event]
	nextID atomic.Uint64
	done   chan struct{}
	once   sync.Once
}

// New starts a fake remote with no records.
func New() *Server {
	s := &Server{
		records: map[string]string{},
		subs:    xsync.NewMapOf[uint64, chan rstore.Event](),
		done:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/media/{key}", s.handleGet)
	mux.HandleFunc("POST /api/media/{key}", s.handleSet)
	mux.HandleFunc("DELETE /api/media/{key}", s.handleDelete)
	mux.HandleFunc("PATCH /api/media/{key}", s.handlePatch)
	mux.HandleFunc("GET /api/media", s.handleList)
	mux.HandleFunc("POST /api/sync/media", s.handleSync)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	s.Server = httptest.NewServer(s.middleware(mux))
	return s
}

// Close ends open event streams and shuts the server down.
func (s *Server) Close() {
	s.once.Do(func() {
		close(s.done)
		s.Server.Close()
	})
}

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// Put stores a record directly, without publishing an event.
func (s *Server) Put(key, record string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record
}

// Record returns the stored record for key.
func (s *Server) Record(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	return r, ok
}

// Records returns a copy of all stored records.
func (s *Server) Records() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Keys returns the sorted keys of all stored records.
func (s *Server) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// FailWith makes every following request answer with status (0 restores normal behaviour).
func (s *Server) FailWith(status int) {
	s.failWith.Store(int32(status))
}

// Publish sends ev to all connected event streams.
func (s *Server) Publish(ev rstore.Event) {
	s.subs.Range(func(_ uint64, ch chan rstore.Event) bool {
		select {
		case ch <- ev:
		case <-time.After(time.Second):
			Logger.Warningf("dropping event %s for slow subscriber", ev.Kind)
		}
		return true
	})
}

// Subscribers returns the number of connected event streams.
func (s *Server) Subscribers() int {
	return s.subs.Size()
}

// --------------------------------------------------------------------------
// Middleware (logging, failure injection)
// --------------------------------------------------------------------------

// responseWriter captures the status code for the request log
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.requests.Add(1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if status := int(s.failWith.Load()); status != 0 {
			http.Error(rw, "injected failure", status)
		} else {
			next.ServeHTTP(rw, r)
		}

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("failed to write response: %v", err)
	}
}

// rawRecord embeds a record as JSON. Records that are not JSON are sent as strings.
func rawRecord(record string) json.RawMessage {
	if json.Valid([]byte(record)) {
		return json.RawMessage(record)
	}
	b, _ := json.Marshal(record)
	return b
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	record, ok := s.Record(r.PathValue("key"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var kv struct {
		Key string `json:"key"`
		Val string `json:"val"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusInternalServerError)
		return
	}
	if err := json.Unmarshal(body, &kv); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	if kv.Key != key {
		http.Error(w, "key in body does not match path", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, existed := s.records[key]
	s.records[key] = kv.Val
	s.mu.Unlock()

	if !existed {
		s.Publish(rstore.Event{Kind: rstore.EventCreate, ID: key, Record: string(rawRecord(kv.Val))})
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	s.mu.Lock()
	_, existed := s.records[key]
	delete(s.records, key)
	s.mu.Unlock()

	if existed {
		s.Publish(rstore.Event{Kind: rstore.EventForget, ID: key})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	field, value := r.URL.Query().Get("f"), r.URL.Query().Get("v")
	if field == "" {
		http.Error(w, "missing field", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	record, ok := s.records[key]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(record), &fields); err != nil {
		s.mu.Unlock()
		http.Error(w, "record is not an object", http.StatusUnprocessableEntity)
		return
	}
	fields[field] = value
	updated, _ := json.Marshal(fields)
	s.records[key] = string(updated)
	s.mu.Unlock()

	s.Publish(rstore.Event{Kind: rstore.EventUpdate, ID: key, Field: field, Value: value})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	records := s.Records()
	out := make(map[string]json.RawMessage, len(records))
	for k, v := range records {
		out[k] = rawRecord(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}

	diff := store.Diff(req.IDs, s.Records())
	missing := make(map[string]json.RawMessage, len(diff.Missing))
	for id, record := range diff.Missing {
		missing[id] = rawRecord(record)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"missing": missing,
		"unknown": diff.Unknown,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := s.nextID.Add(1)
	ch := make(chan rstore.Event, 16)
	s.subs.Store(id, ch)
	defer s.subs.Delete(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case ev := <-ch:
			b, err := json.Marshal(ev)
			if err != nil {
				Logger.Errorf("failed to encode event: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}
