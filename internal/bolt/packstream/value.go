package packstream

import "fmt"

// Structure is a PackStream composite value carrying a one-byte signature and an ordered
// sequence of fields. Bolt messages are structures; the message package interprets the
// signature.
type Structure struct {
	Signature byte
	Fields    []interface{}
}

// ValueEqual performs a structural comparison of two decoded PackStream values, recursing into
// List, *Map, and *Structure. It exists because values decode into plain interface{} and
// reflect.DeepEqual would not apply the packstream equality rules (e.g. []byte(nil) vs []byte{}).
func ValueEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		return ok && av.Equal(bv)
	case *Structure:
		bv, ok := b.(*Structure)
		if !ok || av.Signature != bv.Signature || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i := range av.Fields {
			if !ValueEqual(av.Fields[i], bv.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func typeMismatch(op string, want, got interface{}) error {
	return fmt.Errorf("%s: expected %T got %T", op, want, got)
}
