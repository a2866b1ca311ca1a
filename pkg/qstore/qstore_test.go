package qstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualifier-dev/qualifier/pkg/qrecord"
)

func newTestAttestation(t *testing.T, subject, author string, score int32, summary string) qrecord.Record {
	t.Helper()
	a := &qrecord.Attestation{
		Env: qrecord.Envelope{
			Metabox:   "1",
			Type:      string(qrecord.TypeAttestation),
			Subject:   subject,
			Author:    author,
			CreatedAt: "2026-01-01T00:00:00Z",
		},
		Body: qrecord.AttestationBody{Kind: string(qrecord.KindConcern), Score: score, Summary: summary},
	}
	id, err := qrecord.ComputeID(a)
	require.NoError(t, err)
	a.Env.ID = id
	return a
}

func TestParseLines_SkipsCommentsAndBlanks(t *testing.T) {
	data := []byte("// a leading comment\n\n{\"a\":1}\n   \n// trailing\n{\"b\":2}\n")
	lines, errs := ParseLines(data)
	require.Empty(t, errs)
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].LineNo)
	assert.Equal(t, 6, lines[1].LineNo)
}

func TestParseLines_ReportsMalformedLineAndContinues(t *testing.T) {
	data := []byte("{\"ok\":1}\nnot json at all\n{\"ok\":2}\n")
	lines, errs := ParseLines(data)
	require.Len(t, lines, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Line)
}

func TestAppendAndParseFile_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.qual")

	a := newTestAttestation(t, "src/x", "alice", 10, "looks fine")
	require.NoError(t, Append(path, a))

	b := newTestAttestation(t, "src/x", "alice", -5, "minor nit")
	require.NoError(t, Append(path, b))

	rf, err := ParseFile(path)
	require.NoError(t, err)
	require.Empty(t, rf.Errors)
	require.Len(t, rf.Records, 2)
	assert.Equal(t, a.ID(), rf.Records[0].ID())
	assert.Equal(t, b.ID(), rf.Records[1].ID())
}

func TestDiscover_FindsQualFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "pkg"), 0o755))

	a := newTestAttestation(t, "src/pkg/x.go", "alice", 10, "ok")
	require.NoError(t, Append(filepath.Join(dir, "src", "pkg", "notes.qual"), a))

	b := newTestAttestation(t, "top-level", "bob", 5, "ok too")
	require.NoError(t, Append(filepath.Join(dir, ".qual"), b))

	files, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Empty(t, f.Errors)
		assert.Len(t, f.Records, 1)
	}
}

func TestFindRoot_StopsAtVCSMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	sub := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := FindRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindRoot_StopsAtLegacyGraphFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, legacyGraphFile), []byte("{}"), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := FindRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}
