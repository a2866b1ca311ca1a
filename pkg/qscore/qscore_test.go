package qscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
	"github.com/qualifier-dev/qualifier/pkg/qrecord"
)

func attest(t *testing.T, subject, author string, score int32, supersedes string) qrecord.Record {
	t.Helper()
	a := &qrecord.Attestation{
		Env: qrecord.Envelope{
			Metabox:   "1",
			Type:      string(qrecord.TypeAttestation),
			Subject:   subject,
			Author:    author,
			CreatedAt: "2026-01-01T00:00:00Z",
		},
		Body: qrecord.AttestationBody{Kind: string(qrecord.KindConcern), Score: score, Summary: "s", Supersedes: supersedes},
	}
	id, err := qrecord.ComputeID(a)
	require.NoError(t, err)
	a.Env.ID = id
	return a
}

func TestActiveSet_SupersededRecordExcluded(t *testing.T) {
	first := attest(t, "src/x", "alice", -50, "")
	second := attest(t, "src/x", "alice", 10, first.ID())

	results, err := ResolveAll([]qrecord.Record{first, second}, -100, 100)
	require.NoError(t, err)
	res := results["src/x"]
	require.Len(t, res.Active, 1)
	assert.Equal(t, second.ID(), res.Active[0].ID())
	assert.Equal(t, int32(10), res.Raw)
}

func TestActiveSet_DanglingSupersedeDoesNotDeactivate(t *testing.T) {
	orphan := attest(t, "src/x", "alice", 5, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	results, err := ResolveAll([]qrecord.Record{orphan}, -100, 100)
	require.NoError(t, err)
	assert.Len(t, results["src/x"].Active, 1)
}

func TestActiveSet_CrossSubjectSupersessionRejected(t *testing.T) {
	target := attest(t, "src/y", "alice", 5, "")
	bad := attest(t, "src/x", "alice", 5, target.ID())

	_, err := ResolveAll([]qrecord.Record{target, bad}, -100, 100)
	require.Error(t, err)
	var crossErr *qerr.CrossSubjectError
	require.ErrorAs(t, err, &crossErr)
}

func TestActiveSet_CycleDetected(t *testing.T) {
	// Two records whose ids each hash the other's supersedes cannot
	// exist, since id depends on body; instead synthesize a 2-cycle
	// using the raw structs with forced ids.
	a := &qrecord.Attestation{
		Env:  qrecord.Envelope{Metabox: "1", Type: "attestation", Subject: "src/x", Author: "a", CreatedAt: "t"},
		Body: qrecord.AttestationBody{Kind: "concern", Score: 1, Summary: "s"},
	}
	idA, _ := qrecord.ComputeID(a)
	a.Env.ID = idA

	b := &qrecord.Attestation{
		Env:  qrecord.Envelope{Metabox: "1", Type: "attestation", Subject: "src/x", Author: "a", CreatedAt: "t2"},
		Body: qrecord.AttestationBody{Kind: "concern", Score: 1, Summary: "s", Supersedes: idA},
	}
	idB, _ := qrecord.ComputeID(b)
	b.Env.ID = idB

	// Force a's supersedes to point back at b, forming a 2-cycle.
	a.Body.Supersedes = idB

	_, err := ResolveAll([]qrecord.Record{a, b}, -100, 100)
	require.Error(t, err)
	var cycleErr *qerr.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, qerr.KindSupersessionCycle, cycleErr.Kind)
}

func TestRawScore_ClampsToRange(t *testing.T) {
	recs := []qrecord.Record{
		attest(t, "src/x", "a", -80, ""),
		attest(t, "src/x", "b", -80, ""),
	}
	assert.Equal(t, int32(-100), RawScore(recs, -100, 100))
}

func TestRawScore_SingleAttestationClampsToMinus100(t *testing.T) {
	recs := []qrecord.Record{attest(t, "src/x", "a", -200, "")}
	assert.Equal(t, int32(-100), RawScore(recs, -100, 100))
}

func TestRawScore_RespectsCustomClampBounds(t *testing.T) {
	recs := []qrecord.Record{attest(t, "src/x", "a", 80, "")}
	assert.Equal(t, int32(50), RawScore(recs, -50, 50))
}

func TestTopoSort_OrdersDependenciesFirst(t *testing.T) {
	g := Graph{"app": {"lib"}, "lib": {"core"}}
	order, err := TopoSort(g)
	require.NoError(t, err)
	idx := make(map[string]int)
	for i, s := range order {
		idx[s] = i
	}
	assert.Less(t, idx["core"], idx["lib"])
	assert.Less(t, idx["lib"], idx["app"])
}

func TestTopoSort_DetectsCycle(t *testing.T) {
	g := Graph{"a": {"b"}, "b": {"a"}}
	_, err := TopoSort(g)
	require.Error(t, err)
	var cycleErr *qerr.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, qerr.KindGraphCycle, cycleErr.Kind)
}

func TestEffectiveScores_FloorsOnWorstDependency(t *testing.T) {
	g := Graph{"app": {"lib"}}
	raw := map[string]int32{"app": 80, "lib": -20}

	reports, err := EffectiveScores(g, raw)
	require.NoError(t, err)
	assert.Equal(t, int32(-20), reports["app"].Effective)
	assert.Equal(t, []string{"lib"}, reports["app"].LimitingPath)
	assert.Equal(t, int32(-20), reports["lib"].Effective)
	assert.Empty(t, reports["lib"].LimitingPath)
}

func TestEffectiveScores_LimitingPathChainsThroughTransitiveDependency(t *testing.T) {
	g := Graph{"app": {"lib"}, "lib": {"core"}}
	raw := map[string]int32{"app": 80, "lib": 50, "core": -10}

	reports, err := EffectiveScores(g, raw)
	require.NoError(t, err)
	assert.Equal(t, int32(-10), reports["lib"].Effective)
	assert.Equal(t, []string{"core"}, reports["lib"].LimitingPath)
	assert.Equal(t, int32(-10), reports["app"].Effective)
	assert.Equal(t, []string{"lib", "core"}, reports["app"].LimitingPath)
}

func TestEffectiveScores_NoDependenciesEqualsRaw(t *testing.T) {
	g := Graph{}
	raw := map[string]int32{"lonely": 42}
	reports, err := EffectiveScores(g, raw)
	require.NoError(t, err)
	assert.Equal(t, int32(42), reports["lonely"].Effective)
	assert.Empty(t, reports["lonely"].LimitingPath)
}

func TestEffectiveScores_SubjectOnlyInDependsOnDefaultsToZeroRaw(t *testing.T) {
	g := Graph{"app": {"unscored"}}
	raw := map[string]int32{"app": 10}
	reports, err := EffectiveScores(g, raw)
	require.NoError(t, err)
	assert.Equal(t, int32(0), reports["unscored"].Effective)
	assert.Equal(t, int32(0), reports["app"].Effective)
}

func TestStatus_Labels(t *testing.T) {
	assert.Equal(t, "blocker", Status(ScoreReport{Effective: -1}, true, 60))
	assert.Equal(t, "healthy", Status(ScoreReport{Effective: 60}, true, 60))
	assert.Equal(t, "unqualified", Status(ScoreReport{Effective: 0}, false, 60))
	assert.Equal(t, "ok", Status(ScoreReport{Effective: 0}, true, 60))
}

func TestLoadLegacyGraph_ParsesSubjectAndArtifactAliasWithComments(t *testing.T) {
	data := []byte("// a comment\n{\"subject\":\"app\",\"depends_on\":[\"lib\"]}\n\n{\"artifact\":\"lib\",\"depends_on\":[\"core\"]}\n")
	g, errs := LoadLegacyGraph(data)
	require.Empty(t, errs)
	assert.Equal(t, []string{"lib"}, g["app"])
	assert.Equal(t, []string{"core"}, g["lib"])
}

func TestMerge_UnionsEdgeSetsForSameSubject(t *testing.T) {
	a := Graph{"app": {"lib"}}
	b := Graph{"app": {"core"}}
	merged := Merge(a, b)
	assert.Equal(t, []string{"core", "lib"}, merged["app"])
}
