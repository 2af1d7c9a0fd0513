package rstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mediamanager/mstore/lib/store"
)

// EventKind is the tag of a remote media event.
type EventKind uint8

const (
	EventNull   EventKind = iota // keep-alive, carries nothing
	EventCreate                  // a record was created (ID, Record)
	EventUpdate                  // one field changed (ID, Field, Value)
	EventForget                  // a record was removed (ID)
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "Create"
	case EventUpdate:
		return "Update"
	case EventForget:
		return "Forget"
	default:
		return "Null"
	}
}

// Event is one message of the remote event stream.
//
// On the wire events are externally tagged:
//
//	{"Create":["id",{...record...}]}
//	{"Update":["id","field","value"]}
//	{"Forget":"id"}
//	"Null"
type Event struct {
	Kind   EventKind
	ID     string
	Field  string
	Value  string
	Record string // raw JSON of the record for EventCreate
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventCreate:
		record := json.RawMessage(e.Record)
		if len(record) == 0 {
			record = json.RawMessage("null")
		}
		return json.Marshal(map[string][]any{"Create": {e.ID, record}})
	case EventUpdate:
		return json.Marshal(map[string][]string{"Update": {e.ID, e.Field, e.Value}})
	case EventForget:
		return json.Marshal(map[string]string{"Forget": e.ID})
	default:
		return []byte(`"Null"`), nil
	}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "Null" {
			return fmt.Errorf("unknown event %q", tag)
		}
		*e = Event{Kind: EventNull}
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("event must have exactly one tag, got %d", len(tagged))
	}

	for tag, payload := range tagged {
		switch tag {
		case "Create":
			var parts []json.RawMessage
			if err := json.Unmarshal(payload, &parts); err != nil {
				return fmt.Errorf("Create: %w", err)
			}
			if len(parts) != 2 {
				return fmt.Errorf("Create: expected [id, record], got %d elements", len(parts))
			}
			var id string
			if err := json.Unmarshal(parts[0], &id); err != nil {
				return fmt.Errorf("Create: id: %w", err)
			}
			*e = Event{Kind: EventCreate, ID: id, Record: string(parts[1])}
		case "Update":
			var parts []string
			if err := json.Unmarshal(payload, &parts); err != nil {
				return fmt.Errorf("Update: %w", err)
			}
			if len(parts) != 3 {
				return fmt.Errorf("Update: expected [id, field, value], got %d elements", len(parts))
			}
			*e = Event{Kind: EventUpdate, ID: parts[0], Field: parts[1], Value: parts[2]}
		case "Forget":
			var id string
			if err := json.Unmarshal(payload, &id); err != nil {
				return fmt.Errorf("Forget: %w", err)
			}
			*e = Event{Kind: EventForget, ID: id}
		default:
			return fmt.Errorf("unknown event %q", tag)
		}
	}
	return nil
}

// Events subscribes to the server-sent event stream at /api/events and calls fn for
// every decoded event (keep-alive Null events are dropped). Undecodable messages are
// logged and skipped.
//
// Events blocks until ctx is done (returns nil), the server closes the stream (returns
// nil) or the connection fails. The store timeout does not apply to the stream.
func (s *Store) Events(ctx context.Context, fn func(Event)) error {
	target := s.origin + eventsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return store.WrapError(store.RetCInternalError, err, "GET %s", target)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return store.WrapError(store.RetCRequestFailed, err, "GET %s", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unexpected(http.MethodGet, target, resp.StatusCode)
	}
	Logger.Infof("subscribed to %s", target)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var data []string
	dispatch := func() {
		if len(data) == 0 {
			return
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			Logger.Warningf("skipping undecodable event %q: %v", payload, err)
			return
		}
		if ev.Kind != EventNull {
			fn(ev)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	dispatch()

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return store.WrapError(store.RetCRequestFailed, err, "GET %s: read stream", target)
	}
	return nil
}
