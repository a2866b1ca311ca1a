// Package qmcf implements the Metabox Canonical Form (MCF): the
// byte-exact serialization of a Qualifier record used both to compute
// its content-addressed identifier and to write it to a record file.
//
// MCF deliberately does not delegate to a general-purpose JSON
// serializer. Key ordering, optional-field omission, and integer
// formatting are enforced here so that two independent implementations
// produce identical bytes for the same semantic record. The approach:
// pre-marshal with encoding/json, decode into a generic tree with
// json.Number preserved, then walk and re-emit by hand with HTML
// escaping disabled. MCF differs from plain
// RFC 8785 JCS in one load-bearing way: envelope fields keep a fixed
// emission order instead of being sorted alongside everything else.
package qmcf

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"lukechampine.com/blake3"
)

// Envelope is the six fixed fields common to every record, plus its
// type-specific Body. Body is typically a map[string]interface{} whose
// leaves are already JSON-primitive (string, bool, json.Number, nested
// maps/slices) — callers build it via ToGenericBody below rather than
// handing qmcf a tagged struct.
type Envelope struct {
	Metabox   string
	Type      string
	Subject   string
	Author    string
	CreatedAt string
	ID        string
	Body      map[string]interface{}
}

// ToGenericBody marshals a typed body (an attestation/epoch/dependency
// body struct) into the generic, number-preserving map shape Canonical
// and ComputeID expect. Unknown-type bodies should be built directly as
// map[string]interface{} instead, since they have no Go struct.
func ToGenericBody(body interface{}) (map[string]interface{}, error) {
	if body == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("qmcf: marshal body: %w", err)
	}
	var generic map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("qmcf: decode body: %w", err)
	}
	return generic, nil
}

// Normalize applies the §4.1 normalization rules: a missing metabox
// defaults to "1", a missing type defaults to "attestation", and a
// present span.start with an absent span.end sets end equal to start.
// Columns inside span are never defaulted. Normalize mutates neither
// its argument's nested maps destructively beyond this rule and returns
// the (possibly updated) Envelope.
func Normalize(env Envelope) Envelope {
	if env.Metabox == "" {
		env.Metabox = "1"
	}
	if env.Type == "" {
		env.Type = "attestation"
	}
	if env.Body != nil {
		normalizeSpan(env.Body)
	}
	return env
}

func normalizeSpan(body map[string]interface{}) {
	rawSpan, ok := body["span"]
	if !ok {
		return
	}
	span, ok := rawSpan.(map[string]interface{})
	if !ok {
		return
	}
	if _, hasEnd := span["end"]; hasEnd {
		return
	}
	start, hasStart := span["start"]
	if !hasStart {
		return
	}
	startMap, ok := start.(map[string]interface{})
	if !ok {
		span["end"] = start
		return
	}
	clone := make(map[string]interface{}, len(startMap))
	for k, v := range startMap {
		clone[k] = v
	}
	span["end"] = clone
}

// Canonical emits the exact MCF byte sequence for env: envelope fields
// in fixed order (metabox, type, subject, author, created_at, id,
// body), body fields in ascending lexicographic key order recursively,
// no whitespace, no trailing newline.
func Canonical(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key, value string, first bool) error {
		if !first {
			buf.WriteByte(',')
		}
		kb, err := canonicalString(key)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := canonicalString(value)
		if err != nil {
			return err
		}
		buf.Write(vb)
		return nil
	}

	if err := writeField("metabox", env.Metabox, true); err != nil {
		return nil, err
	}
	if err := writeField("type", env.Type, false); err != nil {
		return nil, err
	}
	if err := writeField("subject", env.Subject, false); err != nil {
		return nil, err
	}
	if err := writeField("author", env.Author, false); err != nil {
		return nil, err
	}
	if err := writeField("created_at", env.CreatedAt, false); err != nil {
		return nil, err
	}
	if err := writeField("id", env.ID, false); err != nil {
		return nil, err
	}

	buf.WriteString(`,"body":`)
	bodyBytes, err := canonicalValue(env.Body)
	if err != nil {
		return nil, fmt.Errorf("qmcf: canonicalize body: %w", err)
	}
	buf.Write(bodyBytes)

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ComputeID returns the lowercase hex BLAKE3 digest of env's canonical
// form with id set to the empty string, per §4.1/§4.2.
func ComputeID(env Envelope) (string, error) {
	env.ID = ""
	b, err := Canonical(env)
	if err != nil {
		return "", err
	}
	digest := blake3.Sum256(b)
	return hex.EncodeToString(digest[:]), nil
}

func canonicalString(s string) ([]byte, error) {
	return canonicalValue(s)
}

// canonicalValue recursively serializes a decoded JSON value (nil,
// bool, json.Number, float64, string, []interface{},
// map[string]interface{}) into its MCF byte form: sorted object keys,
// no HTML escaping, bare decimal integers, omission of absent values is the caller's
// responsibility (this function only ever sees values that are meant
// to be emitted).
func canonicalValue(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		return []byte(t.String()), nil
	case int:
		return []byte(json.Number(fmt.Sprintf("%d", t)).String()), nil
	case int64:
		return []byte(json.Number(fmt.Sprintf("%d", t)).String()), nil
	case float64:
		// Plain encoding/json decoding yields float64; 'f' formatting
		// keeps integral values as bare decimals with no exponent.
		return []byte(strconv.FormatFloat(t, 'f', -1, 64)), nil
	case string:
		return encodeJSONString(t)
	case []string:
		arr := make([]interface{}, len(t))
		for i, s := range t {
			arr[i] = s
		}
		return canonicalValue(arr)
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := canonicalValue(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := encodeJSONString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := canonicalValue(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("qmcf: unsupported value type %T", v)
	}
}

// encodeJSONString escapes s per RFC 8259 §7, the only escapes JSON
// requires, with HTML escaping disabled and forward slash left bare.
func encodeJSONString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("qmcf: encode string: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
