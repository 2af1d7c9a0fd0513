package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Document {
	return MapOf(map[string]Document{
		"title":  Val("Night of the Living Dead"),
		"format": Val("mkv"),
		"meta": MapOf(map[string]Document{
			"year": Val("1968"),
			"tags": FromStrings(map[string]string{"genre": "horror"}),
		}),
	})
}

func TestGet(t *testing.T) {
	d := sample()

	tests := []struct {
		name  string
		path  string
		want  Document
		found bool
	}{
		{"empty path returns self", "", d, true},
		{"top level value", "title", Val("Night of the Living Dead"), true},
		{"nested value", "meta.year", Val("1968"), true},
		{"deeply nested value", "meta.tags.genre", Val("horror"), true},
		{"nested map", "meta.tags", FromStrings(map[string]string{"genre": "horror"}), true},
		{"unknown leading segment", "missing.year", Document{}, false},
		{"unknown leaf", "meta.month", Document{}, false},
		{"traversal into value", "title.length", Document{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Get(tt.path)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetOnValue(t *testing.T) {
	v := Val("x")

	got, ok := v.Get("")
	require.True(t, ok)
	assert.True(t, got.Equal(v))

	_, ok = v.Get("a")
	assert.False(t, ok)
}

func TestZeroDocumentIsEmptyValue(t *testing.T) {
	var d Document
	assert.True(t, d.IsValue())
	s, ok := d.Value()
	assert.True(t, ok)
	assert.Equal(t, "", s)
}

func TestMergeIdempotent(t *testing.T) {
	docs := []Document{
		Val("x"),
		Empty(),
		sample(),
		FromStrings(map[string]string{"a": "1", "b": "2"}),
	}
	for _, d := range docs {
		assert.True(t, d.Merge(d).Equal(d), "merge(a, a) != a for %s", d)
	}
}

func TestMergeDisjointMapsIsUnion(t *testing.T) {
	a := FromStrings(map[string]string{"title": "x", "format": "mp4"})
	b := MapOf(map[string]Document{
		"url":  Val("http://media/x.mp4"),
		"meta": FromStrings(map[string]string{"year": "2001"}),
	})

	merged := a.Merge(b)

	assert.Equal(t, []string{"format", "meta", "title", "url"}, merged.Keys())
	for _, k := range a.Keys() {
		got, _ := merged.Get(k)
		want, _ := a.Get(k)
		assert.True(t, want.Equal(got), k)
	}
	for _, k := range b.Keys() {
		got, _ := merged.Get(k)
		want, _ := b.Get(k)
		assert.True(t, want.Equal(got), k)
	}
}

func TestMergeSharedKeys(t *testing.T) {
	a := MapOf(map[string]Document{
		"title": Val("local"),
		"meta":  FromStrings(map[string]string{"year": "1968", "lang": "en"}),
		"kind":  Val("video"),
		"extra": FromStrings(map[string]string{"k": "v"}),
	})
	b := MapOf(map[string]Document{
		"title": Val("remote"),
		"meta":  FromStrings(map[string]string{"year": "1970", "country": "us"}),
		"kind":  FromStrings(map[string]string{"sub": "film"}),
		"extra": Val("flat"),
	})

	merged := a.Merge(b)

	// both maps at "meta": recursive merge
	meta, ok := merged.Get("meta")
	require.True(t, ok)
	wantMeta := FromStrings(map[string]string{"year": "1968", "lang": "en", "country": "us"})
	assert.True(t, wantMeta.Equal(meta), "meta = %s", meta)
	ma, _ := a.Get("meta")
	mb, _ := b.Get("meta")
	assert.True(t, ma.Merge(mb).Equal(meta))

	// every other combination: left wins
	for _, k := range []string{"title", "kind", "extra"} {
		got, _ := merged.Get(k)
		want, _ := a.Get(k)
		assert.True(t, want.Equal(got), "%s: got %s want %s", k, got, want)
	}
}

func TestMergeLeftBiasOnKindMismatch(t *testing.T) {
	m := FromStrings(map[string]string{"a": "1"})
	v := Val("x")

	assert.True(t, v.Merge(m).Equal(v))
	assert.True(t, m.Merge(v).Equal(m))
	assert.True(t, Val("l").Merge(Val("r")).Equal(Val("l")))
}

func TestMergeIsPure(t *testing.T) {
	a := FromStrings(map[string]string{"a": "1"})
	b := FromStrings(map[string]string{"b": "2"})
	before := a.String()

	_ = a.Merge(b)

	assert.Equal(t, before, a.String())
	assert.Equal(t, `{"b":"2"}`, b.String())
}

func TestMergeNotAssociative(t *testing.T) {
	a := FromStrings(map[string]string{"k": "a"})
	b := MapOf(map[string]Document{"k": FromStrings(map[string]string{"x": "b"})})
	c := MapOf(map[string]Document{"j": Val("c")})

	// some groupings agree
	left := a.Merge(b).Merge(c)
	right := a.Merge(b.Merge(c))
	assert.True(t, left.Equal(right))

	left = b.Merge(a).Merge(a)
	right = b.Merge(a.Merge(a))
	assert.True(t, left.Equal(right))

	// but a Value in the middle changes the outcome
	x := Val("x")
	y := FromStrings(map[string]string{"k": "y"})
	z := FromStrings(map[string]string{"k": "z", "q": "z"})
	assert.False(t, y.Merge(x).Merge(z).Equal(y.Merge(x.Merge(z))))
}

func TestSetAndRemove(t *testing.T) {
	d := FromStrings(map[string]string{"title": "x"})

	updated := d.Set("meta.year", Val("2001"))
	year, ok := updated.GetString("meta.year")
	require.True(t, ok)
	assert.Equal(t, "2001", year)

	// original untouched
	_, ok = d.Get("meta")
	assert.False(t, ok)

	// setting below a value replaces it with a map
	replaced := updated.Set("title.main", Val("y"))
	main, ok := replaced.GetString("title.main")
	require.True(t, ok)
	assert.Equal(t, "y", main)

	removed := updated.Remove("meta.year")
	_, ok = removed.Get("meta.year")
	assert.False(t, ok)
	_, ok = removed.Get("meta")
	assert.True(t, ok)

	assert.True(t, updated.Remove("nope").Equal(updated))
}

func TestWalk(t *testing.T) {
	var paths []string
	sample().Walk(func(path, value string) bool {
		paths = append(paths, path+"="+value)
		return true
	})
	assert.Equal(t, []string{
		"format=mkv",
		"meta.tags.genre=horror",
		"meta.year=1968",
		"title=Night of the Living Dead",
	}, paths)

	count := 0
	sample().Walk(func(string, string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestNormalization(t *testing.T) {
	// "é" as one code point vs "e" + combining acute accent
	composed := Val("caf\u00e9")
	decomposed := Val("cafe\u0301")
	assert.True(t, composed.Equal(decomposed))
	assert.Equal(t, composed.String(), decomposed.String())

	m1 := FromStrings(map[string]string{"caf\u00e9": "1"})
	m2 := FromStrings(map[string]string{"cafe\u0301": "1"})
	assert.True(t, m1.Equal(m2))

	// paths are normalized the same way as keys
	d := Empty().Set("cafe\u0301", Val("x"))
	assert.Equal(t, []string{"caf\u00e9"}, d.Keys())
	v, ok := d.GetString("cafe\u0301")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	v, ok = d.GetString("caf\u00e9")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	assert.Equal(t, 0, d.Remove("cafe\u0301").Len())

	nested := Empty().Set("cafe\u0301.e\u0301t\u00e9", Val("y"))
	v, ok = nested.GetString("caf\u00e9.\u00e9t\u00e9")
	assert.True(t, ok)
	assert.Equal(t, "y", v)
}

func TestMapOfCollidingKeysIsDeterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		d := MapOf(map[string]Document{
			"caf\u00e9":  Val("composed"),
			"cafe\u0301": Val("decomposed"),
		})
		require.Equal(t, 1, d.Len())
		// "cafe\u0301" sorts before "caf\u00e9" in byte order
		v, _ := d.GetString("caf\u00e9")
		assert.Equal(t, "decomposed", v)
	}
}
