package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal renders a JSON-like value deterministically: object keys sorted
// lexicographically at every depth, array order preserved, no whitespace.
// Two logically equal values always produce identical bytes, which is what
// makes recomputed digests comparable against anchored ones.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		// Keep the textual form so numbers survive round-trips unchanged.
		buf.WriteString(val.String())
	case string:
		b, _ := json.Marshal(val)
		buf.Write(b)
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canonical number: %w", err)
		}
		buf.Write(b)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := write(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		// Structs and other typed values: marshal once, re-decode with
		// UseNumber, then canonicalize the generic form.
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canonical marshal %T: %w", val, err)
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var generic interface{}
		if err := dec.Decode(&generic); err != nil {
			return fmt.Errorf("canonical decode %T: %w", val, err)
		}
		return write(buf, generic)
	}
	return nil
}
