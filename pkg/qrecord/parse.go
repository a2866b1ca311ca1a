package qrecord

import (
	"fmt"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
)

// ParseRecord dispatches a decoded JSON object into the appropriate
// Record variant. A missing "type" defaults to "attestation" (input
// shorthand only — never produced on output). Known variants are
// rejected if a required body field is absent; unknown types are
// accepted and their body retained verbatim.
func ParseRecord(raw map[string]interface{}) (Record, error) {
	env, body, err := splitEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch TypeTag(env.Type) {
	case TypeAttestation:
		var b AttestationBody
		if err := unmarshalBody(body, &b); err != nil {
			return nil, fmt.Errorf("%w: attestation body: %v", qerr.ErrUnknownType, err)
		}
		if _, ok := body["score"]; !ok {
			return nil, fmt.Errorf("%w: attestation requires body.score", qerr.ErrUnknownType)
		}
		if b.Kind == "" {
			return nil, fmt.Errorf("%w: attestation requires body.kind", qerr.ErrUnknownType)
		}
		if b.Summary == "" {
			return nil, fmt.Errorf("%w: attestation requires non-empty body.summary", qerr.ErrEmptySummary)
		}
		return &Attestation{Env: env, Body: b}, nil

	case TypeEpoch:
		var b EpochBody
		if err := unmarshalBody(body, &b); err != nil {
			return nil, fmt.Errorf("%w: epoch body: %v", qerr.ErrUnknownType, err)
		}
		if _, ok := body["score"]; !ok {
			return nil, fmt.Errorf("%w: epoch requires body.score", qerr.ErrUnknownType)
		}
		if len(b.Refs) == 0 {
			return nil, fmt.Errorf("%w: epoch requires non-empty body.refs", qerr.ErrUnknownType)
		}
		if b.Summary == "" {
			return nil, fmt.Errorf("%w: epoch requires non-empty body.summary", qerr.ErrEmptySummary)
		}
		if env.Author != CompactAuthor {
			return nil, fmt.Errorf("%w: epoch records must have author %q, got %q", qerr.ErrUnknownType, CompactAuthor, env.Author)
		}
		return &Epoch{Env: env, Body: b}, nil

	case TypeDependency:
		var b DependencyBody
		if err := unmarshalBody(body, &b); err != nil {
			return nil, fmt.Errorf("%w: dependency body: %v", qerr.ErrUnknownType, err)
		}
		if len(b.DependsOn) == 0 {
			return nil, fmt.Errorf("%w: dependency requires non-empty body.depends_on", qerr.ErrUnknownType)
		}
		return &Dependency{Env: env, Body: b}, nil

	default:
		return &Unknown{Env: env, Body: body}, nil
	}
}

// splitEnvelope pulls the seven envelope fields out of a decoded
// record object, tolerating a missing metabox/type on input (both are
// normalized to their defaults), and returns the remaining body as a
// generic map (the empty object if body was absent).
func splitEnvelope(raw map[string]interface{}) (Envelope, map[string]interface{}, error) {
	env := Envelope{}

	if v, ok := raw["metabox"]; ok {
		s, ok := v.(string)
		if !ok {
			return env, nil, fmt.Errorf("qerr: metabox must be a string")
		}
		env.Metabox = s
	} else {
		env.Metabox = "1"
	}

	if v, ok := raw["type"]; ok {
		s, ok := v.(string)
		if !ok {
			return env, nil, fmt.Errorf("qerr: type must be a string")
		}
		env.Type = s
	} else {
		env.Type = string(TypeAttestation)
	}

	subject, err := requireString(raw, "subject")
	if err != nil {
		return env, nil, err
	}
	env.Subject = subject

	author, err := requireString(raw, "author")
	if err != nil {
		return env, nil, err
	}
	env.Author = author

	createdAt, err := requireString(raw, "created_at")
	if err != nil {
		return env, nil, err
	}
	env.CreatedAt = createdAt

	id, err := requireString(raw, "id")
	if err != nil {
		return env, nil, err
	}
	env.ID = id

	var body map[string]interface{}
	if v, ok := raw["body"]; ok {
		m, ok := v.(map[string]interface{})
		if !ok {
			return env, nil, fmt.Errorf("qerr: body must be an object")
		}
		body = m
	} else {
		body = map[string]interface{}{}
	}

	return env, body, nil
}

func requireString(raw map[string]interface{}, field string) (string, error) {
	v, ok := raw[field]
	if !ok {
		return "", fmt.Errorf("missing required envelope field %q", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("envelope field %q must be a string", field)
	}
	return s, nil
}
