// Package qscore implements supersession resolution and raw scoring
// (§4.4), dependency graph merge and topological sort (§4.5), and
// effective-score propagation with limiting-path tracking (§4.6).
package qscore

import (
	"fmt"
	"sort"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
	"github.com/qualifier-dev/qualifier/pkg/qrecord"
)

// Index is a global id-to-record lookup used to detect cross-subject
// supersession even when a subject's own record set doesn't contain
// the superseded record.
type Index map[string]qrecord.Record

// BuildIndex maps every record's id to itself. Later records with a
// duplicate id overwrite earlier ones; ids are neither verified nor
// checked for duplicates here or by qstore's parse functions.
func BuildIndex(all []qrecord.Record) Index {
	idx := make(Index, len(all))
	for _, r := range all {
		idx[r.ID()] = r
	}
	return idx
}

// GroupBySubject partitions records by their envelope subject,
// preserving each subject's relative record order.
func GroupBySubject(all []qrecord.Record) map[string][]qrecord.Record {
	groups := make(map[string][]qrecord.Record)
	for _, r := range all {
		subj := r.Envelope().Subject
		groups[subj] = append(groups[subj], r)
	}
	return groups
}

// ActiveSet resolves the supersession chains within a single subject's
// record set and returns the records that are not superseded by any
// other record in the set, in their original relative order. idx is
// the global record index, used only to detect cross-subject
// supersession targets; dangling references (to ids absent from idx
// entirely) never deactivate the referencing record.
func ActiveSet(subjectRecords []qrecord.Record, idx Index) ([]qrecord.Record, error) {
	byID := make(map[string]qrecord.Record, len(subjectRecords))
	for _, r := range subjectRecords {
		byID[r.ID()] = r
	}

	// supersedes[id] = target id, restricted to edges whose target is
	// inside the local set (cross-subject and dangling targets never
	// participate in the local cycle graph).
	supersedes := make(map[string]string)
	for _, r := range subjectRecords {
		target, ok := r.SupersedesID()
		if !ok {
			continue
		}
		if global, found := idx[target]; found {
			if global.Envelope().Subject != r.Envelope().Subject {
				return nil, &qerr.CrossSubjectError{
					RecordID:      r.ID(),
					RecordSubject: r.Envelope().Subject,
					TargetID:      target,
					TargetSubject: global.Envelope().Subject,
				}
			}
		}
		if _, local := byID[target]; local {
			supersedes[r.ID()] = target
		}
	}

	if cycle := findCycle(subjectRecords, supersedes); cycle != nil {
		return nil, qerr.NewCycleError(qerr.KindSupersessionCycle, cycle)
	}

	superseded := make(map[string]bool, len(supersedes))
	for _, target := range supersedes {
		superseded[target] = true
	}

	active := make([]qrecord.Record, 0, len(subjectRecords))
	for _, r := range subjectRecords {
		if !superseded[r.ID()] {
			active = append(active, r)
		}
	}
	return active, nil
}

// findCycle runs a recursive visiting/visited DFS over the
// supersedes edges local to one subject's record set, returning the
// offending cycle (as a sequence of ids) or nil if the graph is
// acyclic.
func findCycle(records []qrecord.Record, supersedes map[string]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(records))
	for _, r := range records {
		color[r.ID()] = white
	}

	var cycle []string
	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		color[id] = gray
		path = append(path, id)
		if target, ok := supersedes[id]; ok {
			switch color[target] {
			case gray:
				// Close the cycle starting at target's position in path.
				for i, p := range path {
					if p == target {
						cycle = append([]string{}, path[i:]...)
						cycle = append(cycle, target)
						return true
					}
				}
			case white:
				if visit(target, path) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID())
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if visit(id, nil) {
				return cycle
			}
		}
	}
	return nil
}

// RawScore sums body.score across active records whose variant
// carries a score (attestation, epoch), clamped to [clampMin, clampMax]
// (§4.4 defaults these to [-100, 100]; see pkg/qconfig).
// Subjects with zero active scored records have raw score 0.
func RawScore(active []qrecord.Record, clampMin, clampMax int32) int32 {
	var sum int64
	for _, r := range active {
		if score, ok := r.Score(); ok {
			sum += int64(score)
		}
	}
	return clamp(sum, clampMin, clampMax)
}

func clamp(v int64, clampMin, clampMax int32) int32 {
	if v < int64(clampMin) {
		return clampMin
	}
	if v > int64(clampMax) {
		return clampMax
	}
	return int32(v)
}

// SubjectResult bundles one subject's resolved active set and raw
// score.
type SubjectResult struct {
	Subject string
	Active  []qrecord.Record
	Raw     int32
}

// ResolveAll groups all records by subject and resolves each
// subject's active set and raw score independently. It is the entry
// point C4 exposes to the rest of qscore. clampMin/clampMax bound the
// raw-score sum; see pkg/qconfig for the default [-100, 100] and its
// override variables.
func ResolveAll(all []qrecord.Record, clampMin, clampMax int32) (map[string]SubjectResult, error) {
	idx := BuildIndex(all)
	groups := GroupBySubject(all)

	out := make(map[string]SubjectResult, len(groups))
	for subject, records := range groups {
		active, err := ActiveSet(records, idx)
		if err != nil {
			return nil, fmt.Errorf("qscore: subject %q: %w", subject, err)
		}
		out[subject] = SubjectResult{
			Subject: subject,
			Active:  active,
			Raw:     RawScore(active, clampMin, clampMax),
		}
	}
	return out, nil
}
