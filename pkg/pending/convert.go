package pending

import (
	"fmt"

	"github.com/orneryd/nornicdb/pkg/attrs"
)

// Evaluator is the external expression-evaluator collaborator: given a
// source record, it produces the SIValue an expression denotes (spec §6:
// "AR_EXP_Evaluate"). A record is opaque to this package — callers plug in
// whatever record representation their operator tree uses.
type Evaluator interface {
	Evaluate(expr string, record any) (attrs.Value, error)
}

// AttributeResolver resolves (or lazily creates) the graph-wide attribute id
// for a property name, standing in for the original's FindOrAddAttribute.
type AttributeResolver interface {
	ResolveAttribute(name string) attrs.ID
}

// PropertyMap is an ordered (key, expression) list; ordering matters because
// a raised error must report which key failed.
type PropertyMap []PropertyMapEntry

// PropertyMapEntry is one key/expression pair of a property map literal.
type PropertyMapEntry struct {
	Key  string
	Expr string
}

// ConvertPropertyMap evaluates every expression in m against record,
// validates the resulting values, resolves each key's attribute id, and
// clones the result into a fresh attribute set (spec §4.4).
//
// If failOnNull is true, a null-valued property raises ErrNullPropertyValue
// (e.g. MERGE's "Cannot merge using null property value" contract); if
// false, null properties are silently skipped (CREATE's contract). A
// non-permitted value type always raises ErrInvalidPropertyValue, regardless
// of failOnNull.
func ConvertPropertyMap(eval Evaluator, resolver AttributeResolver, record any, m PropertyMap, failOnNull bool) (*attrs.Set, error) {
	var set *attrs.Set

	for _, entry := range m {
		v, err := eval.Evaluate(entry.Expr, record)
		if err != nil {
			return nil, fmt.Errorf("pending: evaluating property %q: %w", entry.Key, err)
		}

		if v.IsNull() {
			if failOnNull {
				return nil, fmt.Errorf("pending: property %q: %w", entry.Key, attrs.ErrNullPropertyValue)
			}
			continue
		}

		if !v.IsValidPropertyValue() {
			return nil, fmt.Errorf("pending: property %q: %w", entry.Key, attrs.ErrInvalidPropertyValue)
		}

		id := resolver.ResolveAttribute(entry.Key)
		set, err = set.Add(id, v)
		if err != nil {
			return nil, fmt.Errorf("pending: property %q: %w", entry.Key, err)
		}
	}

	return set, nil
}
