package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/collection"
	"github.com/mediamanager/mstore/lib/doc"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/mediamanager/mstore/lib/store/rstore"
)

var Logger = logger.GetLogger("media")

// Prefix is the key prefix of the media collection in the local store.
const Prefix = "media/"

// Media is the metadata record of one media file as served by the remote.
type Media struct {
	URL    string `json:"url" yaml:"url"`
	Title  string `json:"title" yaml:"title"`
	Format string `json:"format" yaml:"format"`
}

// Collection is the typed collection media records are kept in.
type Collection = collection.Collection[Media]

// NewCollection opens the media collection on s.
func NewCollection(s store.IStore, opts ...collection.Option[Media]) *Collection {
	return collection.New[Media](s, Prefix, opts...)
}

// --------------------------------------------------------------------------
// Field updates
// --------------------------------------------------------------------------

// Field is a single field assignment. The set of fields is closed: Title, Format and URL.
type Field interface {
	// Name is the wire name of the field ("title", "format", "url").
	Name() string
	// Value is the new value.
	Value() string
	apply(m *Media)
}

type (
	Title  string
	Format string
	URL    string
)

func (f Title) Name() string { return "title" }
func (f Title) Value() string { return string(f) }
func (f Title) apply(m *Media) { m.Title = string(f) }
func (f Format) Name() string { return "format" }
func (f Format) Value() string { return string(f) }
func (f Format) apply(m *Media) { m.Format = string(f) }
func (f URL) Name() string { return "url" }
func (f URL) Value() string { return string(f) }
func (f URL) apply(m *Media) { m.URL = string(f) }

// ErrUnknownField is returned by ParseField for names that are not a media field.
var ErrUnknownField = errors.New("unknown media field")

// ParseField builds a Field from its wire name. Names are matched case-insensitively.
func ParseField(name, value string) (Field, error) {
	switch strings.ToLower(name) {
	case "title":
		return Title(value), nil
	case "format":
		return Format(value), nil
	case "url":
		return URL(value), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// Apply returns a copy of m with the fields assigned in order.
func (m Media) Apply(fields ...Field) Media {
	for _, f := range fields {
		f.apply(&m)
	}
	return m
}

// Update reads the record stored under id, applies the fields and writes it back.
// It returns the updated record, or a NotFound error if id is absent.
func Update(ctx context.Context, c *Collection, id ident.ID, fields ...Field) (Media, error) {
	m, ok, err := c.Get(ctx, id)
	if err != nil {
		return Media{}, err
	}
	if !ok {
		return Media{}, store.NewError(store.RetCNotFound, fmt.Sprintf("media %s not found", id))
	}
	m = m.Apply(fields...)
	if err := c.Set(ctx, id, m); err != nil {
		return Media{}, err
	}
	return m, nil
}

// FieldUpdater changes a single field of a remote record. rstore.Store implements it.
type FieldUpdater interface {
	UpdateField(ctx context.Context, key, field, value string) error
}

// Push sends the field assignments to the remote one request per field.
func Push(ctx context.Context, u FieldUpdater, id ident.ID, fields ...Field) error {
	for _, f := range fields {
		if err := u.UpdateField(ctx, id.String(), f.Name(), f.Value()); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Remote events
// --------------------------------------------------------------------------

// ApplyEvent mirrors one remote event into the local collection. Create stores the
// record, Update assigns the field and Forget drops the record. Updates for records
// that are not present locally are ignored.
func ApplyEvent(ctx context.Context, c *Collection, ev rstore.Event) error {
	id := ident.FromString(ev.ID)
	switch ev.Kind {
	case rstore.EventCreate:
		m, err := c.WireCodec().Decode(ev.Record)
		if err != nil {
			return fmt.Errorf("decode record %s: %w", ev.ID, err)
		}
		return c.Set(ctx, id, m)
	case rstore.EventUpdate:
		f, err := ParseField(ev.Field, ev.Value)
		if err != nil {
			return err
		}
		_, err = Update(ctx, c, id, f)
		if store.CodeOf(err) == store.RetCNotFound {
			Logger.Debugf("update for unknown media %s ignored", ev.ID)
			return nil
		}
		return err
	case rstore.EventForget:
		return c.Drop(ctx, id)
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Documents
// --------------------------------------------------------------------------

// ToDocument converts m into a flat document with the keys url, title and format.
func (m Media) ToDocument() doc.Document {
	return doc.FromStrings(map[string]string{
		"url":    m.URL,
		"title":  m.Title,
		"format": m.Format,
	})
}

// FromDocument reads a media record from a document. Missing keys stay empty, keys
// that are not values are rejected.
func FromDocument(d doc.Document) (Media, error) {
	if !d.IsMap() {
		return Media{}, fmt.Errorf("media document must be a map, got %s", d.Kind())
	}
	var m Media
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"url", &m.URL},
		{"title", &m.Title},
		{"format", &m.Format},
	} {
		child, ok := d.Get(f.key)
		if !ok {
			continue
		}
		v, ok := child.Value()
		if !ok {
			return Media{}, fmt.Errorf("media field %s must be a value", f.key)
		}
		*f.dst = v
	}
	return m, nil
}
