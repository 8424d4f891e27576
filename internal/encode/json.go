package encode

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalRecord renders rec as a JSON object whose keys appear in the
// record's insertion order. encoding/json sorts map keys, which would break
// the byte-stability contract the encoder promises, so the object structure
// is written by hand and only leaf values go through json.Marshal.
func MarshalRecord(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRecord(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, rec *Record) error {
	buf.WriteByte('{')
	first := true
	for el := rec.Front(); el != nil; el = el.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(el.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')

		if err := writeValue(buf, el.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case *Record:
		return writeRecord(buf, val)
	case []*Record:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeRecord(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("marshal value %v: %w", val, err)
		}
		buf.Write(b)
		return nil
	}
}
