package qrecord

import (
	"fmt"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
	"github.com/qualifier-dev/qualifier/pkg/qmcf"
)

// toMCFEnvelope converts a Record into the qmcf.Envelope shape needed
// for canonicalization, applying §4.1 normalization (metabox/type
// defaults, span.end default) along the way.
func toMCFEnvelope(r Record) (qmcf.Envelope, error) {
	env := r.Envelope()

	var generic map[string]interface{}
	switch b := r.RawBody().(type) {
	case map[string]interface{}:
		generic = b
	default:
		g, err := qmcf.ToGenericBody(b)
		if err != nil {
			return qmcf.Envelope{}, fmt.Errorf("qrecord: %w", err)
		}
		generic = g
	}

	out := qmcf.Envelope{
		Metabox:   env.Metabox,
		Type:      env.Type,
		Subject:   env.Subject,
		Author:    env.Author,
		CreatedAt: env.CreatedAt,
		ID:        env.ID,
		Body:      generic,
	}
	return qmcf.Normalize(out), nil
}

// ComputeID returns the 64-hex BLAKE3 identifier for r's canonical
// form with id set to the empty string, per §4.1/§4.2.
func ComputeID(r Record) (string, error) {
	mcfEnv, err := toMCFEnvelope(r)
	if err != nil {
		return "", err
	}
	return qmcf.ComputeID(mcfEnv)
}

// Canonical returns r's exact MCF byte sequence (with its stored id, not
// the empty string) — the form written to a record file.
func Canonical(r Record) ([]byte, error) {
	mcfEnv, err := toMCFEnvelope(r)
	if err != nil {
		return nil, err
	}
	return qmcf.Canonical(mcfEnv)
}

// VerifyID recomputes r's identifier and compares it against the
// stored id, returning a qerr.IDMismatchError on mismatch. Stored id
// format is also checked (64 lowercase hex characters).
func VerifyID(r Record) error {
	if !isHex64(r.ID()) {
		return fmt.Errorf("%w: %q", qerr.ErrBadIDFormat, r.ID())
	}
	computed, err := ComputeID(r)
	if err != nil {
		return err
	}
	if computed != r.ID() {
		return &qerr.IDMismatchError{Stored: r.ID(), Computed: computed}
	}
	return nil
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
