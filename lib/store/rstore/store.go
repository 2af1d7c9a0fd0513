package rstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/store"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("rstore")

const (
	mediaPath  = "/api/media"
	syncPath   = "/api/sync/media"
	eventsPath = "/api/events"
)

// Options configures the remote store
type Options struct {
	// Origin is the scheme and host of the media API, e.g. "http://localhost:8080".
	Origin string
	// Timeout bounds every request except the event stream (0 = no timeout).
	Timeout time.Duration
	// Client is the http client to use (nil = a client with pooled connections).
	Client *http.Client
	// Registry receives the request timers (nil = gometrics.DefaultRegistry).
	Registry gometrics.Registry
}

// Store is the remote store. Every operation is exactly one HTTP request, there are
// no retries.
type Store struct {
	origin   string
	timeout  time.Duration
	client   *http.Client
	registry gometrics.Registry
}

// New validates the origin and creates the remote store.
func New(opts Options) (*Store, error) {
	u, err := url.Parse(opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", opts.Origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q: expected http(s)://host[:port]", opts.Origin)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	registry := opts.Registry
	if registry == nil {
		registry = gometrics.DefaultRegistry
	}

	return &Store{
		origin:   strings.TrimRight(opts.Origin, "/"),
		timeout:  opts.Timeout,
		client:   client,
		registry: registry,
	}, nil
}

// Origin returns the normalized origin the store talks to.
func (s *Store) Origin() string {
	return s.origin
}

// Registry returns the metrics registry holding the request timers.
func (s *Store) Registry() gometrics.Registry {
	return s.registry
}

// keyURL builds {origin}/api/media/{key}. Keys are path escaped since content IDs may
// contain '/'.
func (s *Store) keyURL(key string) string {
	return s.origin + mediaPath + "/" + url.PathEscape(key)
}

// --------------------------------------------------------------------------
// Request helper
// --------------------------------------------------------------------------

// do sends one request and returns status and body. Transport failures become
// RetCRequestFailed errors; the status code is left to the caller.
func (s *Store) do(ctx context.Context, op, method, target string, body any) (int, []byte, error) {
	defer gometrics.GetOrRegisterTimer("rstore."+op, s.registry).UpdateSince(time.Now())

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, store.WrapError(store.RetCInternalError, err, "encode %s body", op)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, store.WrapError(store.RetCInternalError, err, "%s %s", method, target)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		gometrics.GetOrRegisterCounter("rstore.errors", s.registry).Inc(1)
		return 0, nil, store.WrapError(store.RetCRequestFailed, err, "%s %s", method, target)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		gometrics.GetOrRegisterCounter("rstore.errors", s.registry).Inc(1)
		return resp.StatusCode, nil, store.WrapError(store.RetCRequestFailed, err, "%s %s: read body", method, target)
	}

	Logger.Debugf("%s %s => %d", method, target, resp.StatusCode)
	return resp.StatusCode, data, nil
}

func unexpected(method, target string, status int) error {
	return store.NewError(store.RetCRequestFailed, fmt.Sprintf("%s %s: unexpected status %d", method, target, status))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

// Get expects 200 with the value as a JSON string body, or 404.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	target := s.keyURL(key)
	status, body, err := s.do(ctx, "get", http.MethodGet, target, nil)
	if err != nil {
		return "", false, err
	}
	switch status {
	case http.StatusOK:
		var value string
		if err := json.Unmarshal(body, &value); err != nil {
			return "", false, store.WrapError(store.RetCRequestFailed, err, "GET %s: decode body", target)
		}
		return value, true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, unexpected(http.MethodGet, target, status)
	}
}

type keyValue struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// Set posts {"key","val"} and expects 202.
func (s *Store) Set(ctx context.Context, key, value string) error {
	target := s.keyURL(key)
	status, _, err := s.do(ctx, "set", http.MethodPost, target, keyValue{Key: key, Val: value})
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return unexpected(http.MethodPost, target, status)
	}
	return nil
}

// Remove expects 204.
func (s *Store) Remove(ctx context.Context, key string) error {
	target := s.keyURL(key)
	status, _, err := s.do(ctx, "remove", http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return unexpected(http.MethodDelete, target, status)
	}
	return nil
}

// Has probes the key with a GET: 200 present, 404 absent.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	target := s.keyURL(key)
	status, _, err := s.do(ctx, "has", http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, unexpected(http.MethodGet, target, status)
	}
}

// Range lists all records with a single request and visits them in key order.
func (s *Store) Range(ctx context.Context, fn func(key, value string) bool) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(k, records[k]) {
			return nil
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Bulk operations
// --------------------------------------------------------------------------

// List fetches every record: GET /api/media answers 200 with a JSON object of
// key -> record. The raw JSON text of each record is returned as its value.
func (s *Store) List(ctx context.Context) (map[string]string, error) {
	target := s.origin + mediaPath
	status, body, err := s.do(ctx, "list", http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpected(http.MethodGet, target, status)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, store.WrapError(store.RetCRequestFailed, err, "GET %s: decode body", target)
	}
	records := make(map[string]string, len(raw))
	for k, v := range raw {
		records[k] = string(v)
	}
	return records, nil
}

type reconcileRequest struct {
	IDs []string `json:"ids"`
}

type reconcileResponse struct {
	Missing map[string]json.RawMessage `json:"missing"`
	Unknown []string                   `json:"unknown"`
}

// Reconcile posts the local IDs to /api/sync/media. The remote answers with the
// records the caller lacks and the IDs it does not know.
func (s *Store) Reconcile(ctx context.Context, ids []string) (store.SyncResponse, error) {
	target := s.origin + syncPath
	if ids == nil {
		ids = []string{}
	}
	status, body, err := s.do(ctx, "reconcile", http.MethodPost, target, reconcileRequest{IDs: ids})
	if err != nil {
		return store.SyncResponse{}, err
	}
	if status != http.StatusOK {
		return store.SyncResponse{}, unexpected(http.MethodPost, target, status)
	}

	var raw reconcileResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return store.SyncResponse{}, store.WrapError(store.RetCRequestFailed, err, "POST %s: decode body", target)
	}
	resp := store.SyncResponse{
		Missing: make(map[string]string, len(raw.Missing)),
		Unknown: raw.Unknown,
	}
	for id, record := range raw.Missing {
		resp.Missing[id] = string(record)
	}
	return resp, nil
}

// UpdateField changes a single field of a remote record: PATCH /api/media/{key}?f=&v=
// expecting 204. A 404 is reported as RetCNotFound.
func (s *Store) UpdateField(ctx context.Context, key, field, value string) error {
	q := url.Values{}
	q.Set("f", field)
	q.Set("v", value)
	target := s.keyURL(key) + "?" + q.Encode()

	status, _, err := s.do(ctx, "update", http.MethodPatch, target, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return store.NewError(store.RetCNotFound, fmt.Sprintf("no remote record %s", key))
	default:
		return unexpected(http.MethodPatch, target, status)
	}
}
