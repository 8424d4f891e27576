// Package encode converts a reconstructed document into a destination-safe
// record: scalar leaves get a type-tag suffix, sequences are wrapped in a
// single-key container, and field names are escaped to valid warehouse
// identifiers.
package encode

import (
	"fmt"
	"strings"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/ci-telemetry/snowdoc/internal/reconstruct"
)

// Tag is the type-tag suffix appended to a scalar leaf's field name.
type Tag string

const (
	TagBool      Tag = "_b_"
	TagNumeric   Tag = "_n_"
	TagTimestamp Tag = "_t_"
	TagString    Tag = "_s_"
	TagArray     Tag = "_a_"
)

const timestampLayout = "2006-01-02 15:04:05.000000"

// Record is an encoded document: plain scalars and nested *Record / []*Record
// values, keyed in the order the source document was traversed.
type Record = orderedmap.OrderedMap[string, any]

func newRecord() *Record { return orderedmap.NewOrderedMap[string, any]() }

// ColumnUpdate is one newly observed destination column, derived from a
// field name and the type tag its value carried.
type ColumnUpdate struct {
	Column string
	Field  string
	Tag    Tag
}

// Encoder holds the mutable schema mirror across a driver's lifetime: it
// remembers which field/tag combinations (and hence destination columns)
// have already been reported, so ApplySchemaUpdate calls only carry genuinely
// new columns.
type Encoder struct {
	seen map[string]bool
	// fieldTags remembers, per field name, every tag a non-null value has
	// carried so far (in first-seen order), so a later null for the same
	// field can still be tagged instead of silently going untyped.
	fieldTags map[string][]Tag
}

// New creates an Encoder with an empty schema mirror.
func New() *Encoder {
	return &Encoder{seen: map[string]bool{}, fieldTags: map[string][]Tag{}}
}

// Encode renders doc as a destination record. The record is derived from doc
// alone except for null scalars, which are rendered under every tag this
// Encoder has seen for that field so far (none on a fresh Encoder); a
// document without null scalars encodes to identical output on every call
// and on every Encoder instance. adds lists the columns this
// call caused the schema mirror to learn for the first time; it is empty
// once every field/tag combination in doc has been seen before.
func (e *Encoder) Encode(doc *reconstruct.Document) (*Record, []ColumnUpdate) {
	rec := newRecord()
	var adds []ColumnUpdate
	e.encodeInto(rec, doc, &adds)
	return rec, adds
}

func (e *Encoder) encodeInto(rec *Record, doc *reconstruct.Document, adds *[]ColumnUpdate) {
	for el := doc.Front(); el != nil; el = el.Next() {
		name := el.Key
		escaped := escapeField(name)

		switch v := el.Value.(type) {
		case nil:
			// An absent one-edge: the lookup's foreign key was null, so
			// there is no nested record at all, never a typed scalar.
			rec.Set(escaped, nil)
		case reconstruct.NullScalar:
			// A null scalar leaf still owes every tag it has previously
			// been observed under; with none observed yet, it owes nothing.
			for _, tag := range e.fieldTags[name] {
				rec.Set(escaped+"."+string(tag), nil)
			}
		case *reconstruct.Document:
			nested := newRecord()
			e.encodeInto(nested, v, adds)
			rec.Set(escaped, nested)
		case []*reconstruct.Document:
			list := make([]*Record, len(v))
			for i, child := range v {
				list[i] = newRecord()
				e.encodeInto(list[i], child, adds)
			}
			wrapper := newRecord()
			wrapper.Set(string(TagArray), list)
			rec.Set(escaped, wrapper)
		default:
			tag := tagFor(v)
			column := escaped + "." + string(tag)
			rec.Set(column, encodeScalar(v, tag))
			e.noteColumn(column, name, tag, adds)
		}
	}
}

func (e *Encoder) noteColumn(column, field string, tag Tag, adds *[]ColumnUpdate) {
	if !hasTag(e.fieldTags[field], tag) {
		e.fieldTags[field] = append(e.fieldTags[field], tag)
	}
	if e.seen[column] {
		return
	}
	e.seen[column] = true
	*adds = append(*adds, ColumnUpdate{Column: column, Field: field, Tag: tag})
}

func hasTag(tags []Tag, tag Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// tagFor selects the type tag for a scalar's runtime type. Integers and
// intervals collapse to numeric, matching every Go integer width.
func tagFor(v any) Tag {
	switch v.(type) {
	case bool:
		return TagBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, time.Duration:
		return TagNumeric
	case time.Time:
		return TagTimestamp
	default:
		return TagString
	}
}

func encodeScalar(v any, tag Tag) any {
	switch tag {
	case TagTimestamp:
		return v.(time.Time).UTC().Format(timestampLayout)
	case TagString:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
		return v
	default:
		return v
	}
}

// escapeField substitutes every byte outside [A-Za-z0-9] with a stable
// per-character escape so the result is a valid warehouse column identifier.
func escapeField(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "_%02x_", c)
	}
	return b.String()
}
