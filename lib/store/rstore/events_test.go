package rstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireFormat(t *testing.T) {
	tests := []struct {
		wire string
		ev   Event
	}{
		{`{"Create":["a",{"title":"x"}]}`, Event{Kind: EventCreate, ID: "a", Record: `{"title":"x"}`}},
		{`{"Update":["a","title","y"]}`, Event{Kind: EventUpdate, ID: "a", Field: "title", Value: "y"}},
		{`{"Forget":"a"}`, Event{Kind: EventForget, ID: "a"}},
		{`"Null"`, Event{Kind: EventNull}},
	}

	for _, tt := range tests {
		t.Run(tt.ev.Kind.String(), func(t *testing.T) {
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(tt.wire), &ev))
			assert.Equal(t, tt.ev, ev)

			b, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wire, string(b))
		})
	}
}

func TestEventRejectsMalformed(t *testing.T) {
	for _, wire := range []string{
		`"Other"`,
		`{"Create":["a"]}`,
		`{"Update":["a","b"]}`,
		`{"Forget":1}`,
		`{"Forget":"a","Create":["b",{}]}`,
		`{"Explode":"a"}`,
		`[]`,
	} {
		var ev Event
		assert.Error(t, json.Unmarshal([]byte(wire), &ev), wire)
	}
}
