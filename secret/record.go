package secret

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sammck/secret-kv/xjson"
)

// recordType tags the value encoding of a stored record.
const recordType = "xjson"

// record is the plaintext an Engine stores for one key.
type record struct {
	Type  string            `json:"type"`
	Value json.RawMessage   `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func encodeRecord(value xjson.Value, tags map[string]string) ([]byte, error) {
	text, err := xjson.Marshal(value, xjson.ModeExtended)
	if err != nil {
		return nil, err
	}
	return encodeRecordRaw(&record{Type: recordType, Value: text, Tags: tags})
}

func encodeRecordRaw(rec *record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, errors.Wrap(err, "cannot encode record")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func decodeRecord(data []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "cannot decode record")
	}
	if rec.Type != recordType {
		return nil, errors.Wrapf(ErrIncompatible, "unrecognized record type %q", rec.Type)
	}
	return &rec, nil
}

// value decodes the record value. In simple mode a value holding extended
// types is refused rather than returned with its markers.
func (r *record) value(mode xjson.Mode) (xjson.Value, error) {
	v, err := xjson.Unmarshal(r.Value, xjson.ModeExtended)
	if err != nil {
		return xjson.Value{}, err
	}
	if mode == xjson.ModeSimple && xjson.ContainsExtended(v) {
		return xjson.Value{}, errors.Wrap(xjson.ErrExtendedTypePresent, "stored value")
	}
	return v, nil
}

func (r *record) tags() map[string]string {
	tags := make(map[string]string, len(r.Tags))
	for k, v := range r.Tags {
		tags[k] = v
	}
	return tags
}
