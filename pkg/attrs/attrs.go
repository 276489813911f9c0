// Package attrs implements the compact attribute-set representation used to
// back node and relationship property bags.
//
// An attribute set maps a small integer attribute id to a tagged Value. It is
// deliberately dense and unindexed: most entities carry a handful of
// properties, so a linear scan beats any tree or hash map in practice. The
// empty set is represented by a nil *Set rather than an allocation ("absent
// means nil, not empty-but-allocated").
package attrs

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidPropertyValue is returned when a value of a non-permitted type is
// supplied where a property value is required.
var ErrInvalidPropertyValue = errors.New("property values can only be of primitive types or arrays thereof")

// ErrNullPropertyValue is returned when a null property value is supplied in
// a context that disallows it (e.g. MERGE).
var ErrNullPropertyValue = errors.New("cannot merge using null property value")

// ErrTooManyAttributes is returned when an Add would exceed the maximum
// attribute count for a single set.
var ErrTooManyAttributes = errors.New("attribute set exceeds maximum attribute count")

// maxAttributes bounds the count field, mirroring the uint16 attr_count of
// the original C layout (spec: "count <= 65535").
const maxAttributes = 65535

// ID identifies an attribute name within the graph-wide attribute registry.
type ID uint16

// NoneID is the sentinel "no attribute" id.
const NoneID ID = 0xFFFF

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindArray
	KindNodeRef
	KindEdgeRef
	KindPath
	KindMap
)

// validPropertyKinds is the set of Kinds permitted to be stored as an entity
// property (spec §3: "only a subset is a valid property value"). Node/edge/
// path references and maps are valid SIValue kinds in general but are not
// legal standalone property values.
var validPropertyKinds = map[Kind]bool{
	KindBool:    true,
	KindInt64:   true,
	KindFloat64: true,
	KindString:  true,
	KindArray:   true,
}

// Value is a tagged scalar or array value. It is a value type (not a
// pointer) so that copying a Value never shares mutable state, except for
// Array which holds a slice — callers that need isolation use Clone.
type Value struct {
	Kind    Kind
	Bool    bool
	Int64   int64
	Float64 float64
	Str     string
	Array   []Value
	Ref     uint64 // node/edge id when Kind is KindNodeRef/KindEdgeRef
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// IsNull reports whether v represents null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsValidPropertyValue reports whether v may be stored as a property,
// recursing into arrays per spec §4.4 ("arrays are inspected recursively").
func (v Value) IsValidPropertyValue() bool {
	if v.Kind == KindArray {
		for _, e := range v.Array {
			if !e.IsValidPropertyValue() {
				return false
			}
		}
		return true
	}
	return validPropertyKinds[v.Kind]
}

// Clone deep-copies v, recursing into arrays so the clone shares no backing
// storage with the original.
func (v Value) Clone() Value {
	if v.Kind != KindArray {
		return v
	}
	cloned := make([]Value, len(v.Array))
	for i, e := range v.Array {
		cloned[i] = e.Clone()
	}
	return Value{Kind: KindArray, Array: cloned}
}

// Equal reports whether two values compare equal. Arrays compare
// element-wise; this is a structural, not a pointer, comparison.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt64:
		return v.Int64 == other.Int64
	case KindFloat64:
		return v.Float64 == other.Float64
	case KindString:
		return v.Str == other.Str
	case KindNodeRef, KindEdgeRef:
		return v.Ref == other.Ref
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// NotFound is the process-wide immutable sentinel returned by Get when an
// attribute id is absent. Callers compare by pointer identity, never
// dereference-and-mutate — this mirrors ATTRIBUTE_NOTFOUND from the original
// implementation, kept deliberately instead of folding into an option type so
// existing pointer-identity call sites port directly.
var NotFound = &Value{Kind: KindNull}

type attribute struct {
	id    ID
	value Value
}

// Set is a compact attribute bag. The nil *Set is the empty set and carries
// no allocation.
type Set struct {
	attrs []attribute
}

// ChangeType reports the effect of a Set_Allow_Null-style mutation.
type ChangeType uint8

const (
	ChangeNone ChangeType = iota
	ChangeAdd
	ChangeUpdate
	ChangeDelete
)

// Count returns the number of attributes in the set.
func (s *Set) Count() int {
	if s == nil {
		return 0
	}
	return len(s.attrs)
}

// Get returns a pointer to the stored value for id, or NotFound if absent,
// the set is nil, or id is NoneID. O(n) linear scan — n is typically small
// (a handful of properties per entity).
func (s *Set) Get(id ID) *Value {
	if s == nil || id == NoneID {
		return NotFound
	}
	for i := range s.attrs {
		if s.attrs[i].id == id {
			return &s.attrs[i].value
		}
	}
	return NotFound
}

// GetIdx returns the (id, value) pair at position i.
func (s *Set) GetIdx(i int) (ID, Value) {
	a := s.attrs[i]
	return a.id, a.value
}

// Add appends a new attribute, cloning value. Returns an error if id is
// already present or value is not a permitted property type.
func (s *Set) Add(id ID, value Value) (*Set, error) {
	return s.addOne(id, value.Clone())
}

func (s *Set) addOne(id ID, value Value) (*Set, error) {
	if s.Get(id) != NotFound {
		return s, fmt.Errorf("attrs: attribute %d already present", id)
	}
	if !value.IsValidPropertyValue() {
		return s, ErrInvalidPropertyValue
	}
	if s == nil {
		s = &Set{}
	}
	if len(s.attrs) >= maxAttributes {
		return s, ErrTooManyAttributes
	}
	s.attrs = append(s.attrs, attribute{id: id, value: value})
	return s, nil
}

// AddNoClone appends n attributes taking ownership of values (no copy is
// made). Callers guarantee the ids are absent and none of the values are
// volatile/shared state that could mutate out from under the set. A null
// value is rejected with ErrNullPropertyValue unless allowNull is true, in
// which case that entry is skipped.
func (s *Set) AddNoClone(ids []ID, values []Value, allowNull bool) (*Set, error) {
	if len(ids) != len(values) {
		return s, fmt.Errorf("attrs: ids/values length mismatch")
	}
	for i, v := range values {
		if v.IsNull() {
			if !allowNull {
				return s, ErrNullPropertyValue
			}
			continue
		}
		if !v.IsValidPropertyValue() {
			return s, ErrInvalidPropertyValue
		}
		_ = i
	}
	if s == nil && len(ids) > 0 {
		s = &Set{}
	}
	if s != nil && len(s.attrs)+len(ids) > maxAttributes {
		return s, ErrTooManyAttributes
	}
	for i := range ids {
		if values[i].IsNull() {
			continue // allowed nulls are skipped, never stored
		}
		s.attrs = append(s.attrs, attribute{id: ids[i], value: values[i]})
	}
	return s, nil
}

// Set_Allow_Null adds, updates, or removes attr_id depending on value and
// current presence, per spec §4.1:
//   - present, value==NULL  -> remove,  ChangeDelete
//   - present, value==equal -> no-op,   ChangeNone
//   - present, value!=equal -> update,  ChangeUpdate
//   - absent,  value==NULL  -> no-op,   ChangeNone
//   - absent                -> add,     ChangeAdd
func (s *Set) Set_Allow_Null(id ID, value Value) (*Set, ChangeType, error) {
	cur := s.Get(id)
	if cur != NotFound {
		if value.IsNull() {
			s.remove(id)
			return s, ChangeDelete, nil
		}
		if cur.Equal(value) {
			return s, ChangeNone, nil
		}
		*cur = value.Clone()
		return s, ChangeUpdate, nil
	}

	if value.IsNull() {
		return s, ChangeNone, nil
	}

	ns, err := s.Add(id, value)
	if err != nil {
		return s, ChangeNone, err
	}
	return ns, ChangeAdd, nil
}

// Update overwrites the value of an already-present attribute id. A NULL
// value triggers removal. Returns false (no error) if the new value equals
// the current one — matching the original's "only update if changed"
// contract so callers can skip downstream change-tracking work.
func (s *Set) Update(id ID, value Value) (bool, error) {
	cur := s.Get(id)
	if cur == NotFound {
		return false, fmt.Errorf("attrs: attribute %d not present", id)
	}
	if value.IsNull() {
		s.remove(id)
		return true, nil
	}
	if cur.Equal(value) {
		return false, nil
	}
	*cur = value.Clone()
	return true, nil
}

// UpdateNoClone is Update without cloning the incoming value; the caller
// transfers ownership of value to the set.
func (s *Set) UpdateNoClone(id ID, value Value) (bool, error) {
	cur := s.Get(id)
	if cur == NotFound {
		return false, fmt.Errorf("attrs: attribute %d not present", id)
	}
	if value.IsNull() {
		s.remove(id)
		return true, nil
	}
	if cur.Equal(value) {
		return false, nil
	}
	*cur = value
	return true, nil
}

// remove deletes attr_id from the set. On the last attribute it frees the
// whole allocation (sets s.attrs to nil); otherwise it swaps the removed
// slot with the last entry and shrinks, matching the original's
// swap-with-last-and-realloc strategy.
func (s *Set) remove(id ID) bool {
	if s == nil {
		return false
	}
	for i := range s.attrs {
		if s.attrs[i].id != id {
			continue
		}
		last := len(s.attrs) - 1
		s.attrs[i] = s.attrs[last]
		s.attrs = s.attrs[:last]
		if len(s.attrs) == 0 {
			s.attrs = nil
		}
		return true
	}
	return false
}

// Clone deep-copies all values into a freshly allocated set. Freeing (i.e.
// dropping) the clone never affects the original, since Go's GC and the
// per-value Clone() above guarantee no shared backing arrays.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	clone := &Set{attrs: make([]attribute, len(s.attrs))}
	for i, a := range s.attrs {
		clone.attrs[i] = attribute{id: a.id, value: a.value.Clone()}
	}
	return clone
}

// ShallowClone copies the attribute list but shares value storage with the
// original. Mutating an array element through the clone's Value.Array slice
// would therefore be visible in the original; callers that need isolation
// must use Clone instead.
func (s *Set) ShallowClone() *Set {
	if s == nil {
		return nil
	}
	clone := &Set{attrs: make([]attribute, len(s.attrs))}
	copy(clone.attrs, s.attrs)
	return clone
}

// PersistValues is a no-op under this Go representation: Value carries no
// volatile/interned storage class distinct from owned-heap, so there is
// nothing to promote in place. Kept as a named operation so callers porting
// from the original attribute_set.c contract don't need a special case.
func (s *Set) PersistValues() {}

// AttrID hashes an attribute name into a stable 16-bit id space using
// xxhash, the same hashing primitive the storage layer's Badger backend
// already depends on for checksumming short keys. Collisions within the
// 16-bit space are vanishingly unlikely for the number of distinct property
// names a single graph schema carries; AttrID itself does not detect them.
func AttrID(name string) ID {
	h := xxhash.Sum64String(name)
	id := ID(h & 0xFFFE) // keep NoneID (0xFFFF) unreachable
	return id
}

// ForEach calls fn for every (id, value) pair in the set in storage order.
func (s *Set) ForEach(fn func(id ID, value Value)) {
	if s == nil {
		return
	}
	for _, a := range s.attrs {
		fn(a.id, a.value)
	}
}
