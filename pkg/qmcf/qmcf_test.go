package qmcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_EnvelopeFieldOrder(t *testing.T) {
	env := Envelope{
		Metabox:   "1",
		Type:      "attestation",
		Subject:   "src/parser.rs",
		Author:    "alice@example.com",
		CreatedAt: "2026-02-24T10:00:00Z",
		ID:        "",
	}
	// Body must come from ToGenericBody-shaped data (json.Number), so
	// build it the way a real caller would.
	body, err := ToGenericBody(struct {
		Kind    string `json:"kind"`
		Score   int    `json:"score"`
		Summary string `json:"summary"`
	}{Kind: "concern", Score: -30, Summary: "Panics on malformed input"})
	require.NoError(t, err)
	env.Body = body

	b, err := Canonical(env)
	require.NoError(t, err)

	want := `{"metabox":"1","type":"attestation","subject":"src/parser.rs","author":"alice@example.com","created_at":"2026-02-24T10:00:00Z","id":"","body":{"kind":"concern","score":-30,"summary":"Panics on malformed input"}}`
	assert.Equal(t, want, string(b))
}

func TestComputeID_Deterministic(t *testing.T) {
	body, err := ToGenericBody(map[string]interface{}{"kind": "pass", "score": 10, "summary": "ok"})
	require.NoError(t, err)

	env := Envelope{
		Type:      "attestation",
		Subject:   "src/x",
		Author:    "bob",
		CreatedAt: "2026-01-01T00:00:00Z",
		Body:      body,
	}
	env = Normalize(env)

	id1, err := ComputeID(env)
	require.NoError(t, err)
	id2, err := ComputeID(env)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
}

func TestComputeID_IgnoresStoredID(t *testing.T) {
	body, _ := ToGenericBody(map[string]interface{}{"kind": "pass", "score": 10, "summary": "ok"})
	env := Envelope{Metabox: "1", Type: "attestation", Subject: "src/x", Author: "bob", CreatedAt: "2026-01-01T00:00:00Z", Body: body}

	idWhenEmpty, err := ComputeID(env)
	require.NoError(t, err)

	env.ID = "deadbeef"
	idWhenSet, err := ComputeID(env)
	require.NoError(t, err)

	assert.Equal(t, idWhenEmpty, idWhenSet)
}

func TestNormalize_Defaults(t *testing.T) {
	env := Normalize(Envelope{Subject: "x", Body: map[string]interface{}{}})
	assert.Equal(t, "1", env.Metabox)
	assert.Equal(t, "attestation", env.Type)
}

func TestNormalize_SpanEndDefaultsToStart(t *testing.T) {
	env := Envelope{
		Subject: "x",
		Body: map[string]interface{}{
			"span": map[string]interface{}{
				"start": map[string]interface{}{"line": json1(3)},
			},
		},
	}
	env = Normalize(env)
	span := env.Body["span"].(map[string]interface{})
	require.Contains(t, span, "end")
	end := span["end"].(map[string]interface{})
	assert.Equal(t, json1(3), end["line"])

	// Mutating the clone must not alter start.
	end["line"] = json1(99)
	start := span["start"].(map[string]interface{})
	assert.Equal(t, json1(3), start["line"])
}

func TestNormalize_SpanEndNotOverwrittenWhenPresent(t *testing.T) {
	env := Envelope{
		Subject: "x",
		Body: map[string]interface{}{
			"span": map[string]interface{}{
				"start": map[string]interface{}{"line": json1(1)},
				"end":   map[string]interface{}{"line": json1(5)},
			},
		},
	}
	env = Normalize(env)
	span := env.Body["span"].(map[string]interface{})
	end := span["end"].(map[string]interface{})
	assert.Equal(t, json1(5), end["line"])
}

func TestCanonical_RecursiveBodySorting(t *testing.T) {
	env := Envelope{
		Metabox: "1", Type: "attestation", Subject: "s", Author: "a", CreatedAt: "2026-01-01T00:00:00Z",
		Body: map[string]interface{}{
			"z": map[string]interface{}{"y": "foo", "x": "bar"},
			"a": json1(1),
		},
	}
	b, err := Canonical(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"body":{"a":1,"z":{"x":"bar","y":"foo"}}`)
}

func TestCanonical_NoHTMLEscaping(t *testing.T) {
	env := Envelope{
		Metabox: "1", Type: "attestation", Subject: "s", Author: "a", CreatedAt: "2026-01-01T00:00:00Z",
		Body: map[string]interface{}{"summary": "<script>&</script>"},
	}
	b, err := Canonical(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `<script>&</script>`)
}

func TestCanonical_NoTrailingNewline(t *testing.T) {
	env := Envelope{Metabox: "1", Type: "attestation", Subject: "s", Author: "a", CreatedAt: "2026-01-01T00:00:00Z", Body: map[string]interface{}{}}
	b, err := Canonical(env)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "\n")
}

// json1 is a tiny helper that produces the json.Number ToGenericBody
// would have produced for an integer literal, so span tests compare
// like with like.
func json1(n int) interface{} {
	body, _ := ToGenericBody(map[string]interface{}{"v": n})
	return body["v"]
}
