// Package canonical encodes snapshots as deterministic JSON: object keys
// sorted, strings NFC-normalized, no insignificant whitespace. The
// recorder and the golden-file harness share it so identical states
// always produce identical bytes.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Marshal encodes v canonically.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return encodeString(buf, t)
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canonical: encode number: %w", err)
		}
		buf.Write(raw)
	case map[string]any:
		return encodeMap(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		// Arbitrary values round-trip through encoding/json into the
		// generic shapes handled above.
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canonical: encode %T: %w", t, err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("canonical: decode %T: %w", t, err)
		}
		return encode(buf, generic)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	raw, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return fmt.Errorf("canonical: encode string: %w", err)
	}
	buf.Write(raw)
	return nil
}

func encodeMap(buf *bytes.Buffer, m map[string]any) error {
	type pair struct {
		normed string
		orig   string
	}
	pairs := make([]pair, 0, len(m))
	for k := range m {
		pairs = append(pairs, pair{normed: norm.NFC.String(k), orig: k})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].normed < pairs[j].normed })

	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, p.orig); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, m[p.orig]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
