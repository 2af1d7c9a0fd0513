package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	// local knows A and B, remote has B and C
	resp := Diff([]string{"A", "B"}, map[string]string{"B": `{"title":"b"}`, "C": `{"title":"c"}`})

	assert.Equal(t, map[string]string{"C": `{"title":"c"}`}, resp.Missing)
	assert.Equal(t, []string{"A"}, resp.Unknown)
}

func TestDiffEmpty(t *testing.T) {
	resp := Diff(nil, nil)
	assert.Empty(t, resp.Missing)
	assert.NotNil(t, resp.Unknown)
	assert.Empty(t, resp.Unknown)

	resp = Diff([]string{"x", "x", "a"}, map[string]string{})
	assert.Equal(t, []string{"a", "x"}, resp.Unknown)
}
