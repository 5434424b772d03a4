package document

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MarshalFields encodes fields with msgpack. Map keys are sorted, so equal
// field sets always encode to equal bytes.
func MarshalFields(f Fields) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(map[string]any(f)); err != nil {
		return nil, fmt.Errorf("document: encode fields: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalFields decodes fields produced by MarshalFields. Integers decode
// as int64 or uint64 and floats as float64.
func UnmarshalFields(data []byte) (Fields, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("document: decode fields: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
