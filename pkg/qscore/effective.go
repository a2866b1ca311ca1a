package qscore

import "sort"

// ScoreReport is the per-subject output of EffectiveScores: the raw
// score, the propagated effective score, and (if the effective score
// was pulled below the raw score) the chain of subjects responsible.
type ScoreReport struct {
	Subject      string
	Raw          int32
	Effective    int32
	LimitingPath []string
}

// Limited reports whether this subject's effective score is strictly
// below its raw score.
func (r ScoreReport) Limited() bool { return r.Effective < r.Raw }

// EffectiveScores propagates raw scores through the dependency graph
// per §4.6: processing subjects in topological order (dependencies
// first), `eff(S) = min(r(S), min(eff(d) for d in deps(S)))`. raw
// supplies each subject's pre-computed raw score (§4.4); subjects
// absent from raw (present only as a dependency target) default to 0.
func EffectiveScores(g Graph, raw map[string]int32) (map[string]ScoreReport, error) {
	order, err := TopoSort(g)
	if err != nil {
		return nil, err
	}

	reports := make(map[string]ScoreReport, len(order))
	for _, subj := range order {
		r := raw[subj]

		deps := append([]string(nil), g[subj]...)
		sort.Strings(deps)

		if len(deps) == 0 {
			reports[subj] = ScoreReport{Subject: subj, Raw: r, Effective: r}
			continue
		}

		// Find the dependency with the minimum effective score,
		// breaking ties lexicographically (deps is already sorted, so
		// the first minimum encountered is the lex-smallest).
		minDep := deps[0]
		minEff := reports[deps[0]].Effective
		for _, d := range deps[1:] {
			if reports[d].Effective < minEff {
				minEff = reports[d].Effective
				minDep = d
			}
		}

		if minEff < r {
			path := []string{minDep}
			path = append(path, reports[minDep].LimitingPath...)
			reports[subj] = ScoreReport{Subject: subj, Raw: r, Effective: minEff, LimitingPath: path}
		} else {
			reports[subj] = ScoreReport{Subject: subj, Raw: r, Effective: r}
		}
	}
	return reports, nil
}

// Status labels a ScoreReport for presentation layers, per §4.6:
// "blocker" if effective < 0, "healthy" if effective >= healthyThreshold,
// "unqualified" if effective == 0 and the subject has no active scored
// records, otherwise "ok".
func Status(r ScoreReport, hasActiveScoredRecords bool, healthyThreshold int32) string {
	switch {
	case r.Effective < 0:
		return "blocker"
	case r.Effective >= healthyThreshold:
		return "healthy"
	case r.Effective == 0 && !hasActiveScoredRecords:
		return "unqualified"
	default:
		return "ok"
	}
}
