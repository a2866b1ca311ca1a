// Package qconvert lifts the legacy v3 record shape — envelope and
// body fields inlined together at the top level — into the Metabox
// v1 shape this repo's core speaks (a nested "body" object), per
// spec.md §9's first open question. This is a one-shot conversion
// pass only: nothing in pkg/qstore or pkg/qrecord calls it, and no
// runtime dual-format mode exists anywhere in this repo.
package qconvert

import "fmt"

// envelopeKeys are the six fields that stay at the top level in both
// the v3 and Metabox shapes; everything else in a v3 object belongs
// under "body".
var envelopeKeys = map[string]bool{
	"metabox":    true,
	"type":       true,
	"subject":    true,
	"author":     true,
	"created_at": true,
	"id":         true,
}

// FromV3 converts one decoded v3 JSON object into the Metabox v1
// shape by moving every non-envelope key into a nested "body" object.
// It does not validate the result — callers pass the output to
// qrecord.ParseRecord, which performs the usual required-field checks
// for whatever "type" turns out to be.
func FromV3(v3 map[string]interface{}) (map[string]interface{}, error) {
	if v3 == nil {
		return nil, fmt.Errorf("qconvert: nil v3 record")
	}
	if _, hasBody := v3["body"]; hasBody {
		return nil, fmt.Errorf("qconvert: input already has a nested body, not a v3 record")
	}

	out := make(map[string]interface{}, len(envelopeKeys)+1)
	body := make(map[string]interface{})

	for k, v := range v3 {
		if envelopeKeys[k] {
			out[k] = v
			continue
		}
		body[k] = v
	}
	out["body"] = body
	return out, nil
}
