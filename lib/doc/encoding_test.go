package doc

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCanonicalEncoding(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{"value", Val("x"), `"x"`},
		{"empty value", Val(""), `""`},
		{"empty map", Empty(), `{}`},
		{"sorted keys", FromStrings(map[string]string{"b": "2", "a": "1", "c": "3"}), `{"a":"1","b":"2","c":"3"}`},
		{"nested", MapOf(map[string]Document{"m": FromStrings(map[string]string{"z": "1", "y": "2"})}), `{"m":{"y":"2","z":"1"}}`},
		{"no html escaping", Val("<a & b>"), `"<a & b>"`},
		{"quotes and backslashes", Val(`say "hi" \o/`), `"say \"hi\" \\o/"`},
		{"control characters", Val("a\nb\tc\x01"), `"a\nb\tc\u0001"`},
		{"unicode passthrough", Val("日本\u2028"), "\"日本\u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.String())

			b, err := tt.doc.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	docs := []Document{
		Val("x"),
		Val(""),
		Empty(),
		sample(),
		Val("line\nbreak \"quoted\" <tag> \x7f"),
		MapOf(map[string]Document{
			"a": MapOf(map[string]Document{
				"b": MapOf(map[string]Document{"c": Val("deep")}),
			}),
			"empty": Empty(),
			"weird key.with dot": Val("v"),
		}),
	}

	for _, d := range docs {
		parsed, err := Parse(d.String())
		require.NoError(t, err)
		assert.True(t, d.Equal(parsed), "round trip of %s produced %s", d, parsed)

		// also through encoding/json, which re-validates the output
		b, err := json.Marshal(d)
		require.NoError(t, err)
		var viaStd Document
		require.NoError(t, json.Unmarshal(b, &viaStd))
		assert.True(t, d.Equal(viaStd))
	}
}

func TestParseRejectsNonDocumentJSON(t *testing.T) {
	for _, input := range []string{
		`42`,
		`true`,
		`null`,
		`["a"]`,
		`{"a":1}`,
		`{"a":{"b":[1]}}`,
		`{"a":`,
		`{"caf\u00e9":"1","cafe\u0301":"2"}`,
		`{"x":{"e\u0301":"1","\u00e9":"2"}}`,
	} {
		_, err := Parse(input)
		assert.Error(t, err, input)
	}
}

func TestDocumentInsideStruct(t *testing.T) {
	type envelope struct {
		ID  string   `json:"id"`
		Doc Document `json:"doc"`
	}

	in := envelope{ID: "1", Doc: sample()}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out envelope
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "1", out.ID)
	assert.True(t, in.Doc.Equal(out.Doc))
}

func TestPrettyGolden(t *testing.T) {
	g := goldie.New(t)
	g.Assert(t, "pretty_sample", []byte(sample().Pretty()))
	g.Assert(t, "pretty_value", []byte(Val("x").Pretty()))
}

func TestYAML(t *testing.T) {
	out, err := yaml.Marshal(sample())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "mkv", decoded["format"])
	meta, ok := decoded["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1968", meta["year"])

	out, err = yaml.Marshal(Val("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain\n", string(out))
}
