package qscore

import (
	"fmt"
	"sort"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
	"github.com/qualifier-dev/qualifier/pkg/qrecord"
	"github.com/qualifier-dev/qualifier/pkg/qstore"
)

// Graph is a mapping from subject to the set of subjects it depends
// on, stable-sorted on read for deterministic iteration.
type Graph map[string][]string

// legacyEdge is one line of a legacy dependency graph file.
type legacyEdge struct {
	Subject   string   `json:"subject"`
	Artifact  string   `json:"artifact"`
	DependsOn []string `json:"depends_on"`
}

// LoadLegacyGraph parses a legacy qualifier.graph.jsonl payload: JSONL
// with comment/blank-line tolerance (§6), each line an object naming
// a subject (or its legacy alias "artifact") and a depends_on array.
func LoadLegacyGraph(data []byte) (Graph, []*qerr.LineError) {
	lines, errs := qstore.ParseLines(data)

	graph := make(Graph)
	for _, pl := range lines {
		var e legacyEdge
		subj, _ := pl.Object["subject"].(string)
		if subj == "" {
			subj, _ = pl.Object["artifact"].(string)
		}
		e.Subject = subj

		rawDeps, _ := pl.Object["depends_on"].([]interface{})
		for _, d := range rawDeps {
			if s, ok := d.(string); ok {
				e.DependsOn = append(e.DependsOn, s)
			}
		}

		if e.Subject == "" {
			errs = append(errs, qerr.NewLineError(pl.LineNo, qerr.KindMalformedRecord,
				fmt.Errorf("legacy graph line missing subject/artifact")))
			continue
		}
		graph[e.Subject] = append(graph[e.Subject], e.DependsOn...)
	}
	return dedupe(graph), errs
}

// FromDependencyRecords builds a Graph from every parsed dependency
// record's body.depends_on, keyed by the record's own subject.
func FromDependencyRecords(all []qrecord.Record) Graph {
	graph := make(Graph)
	for _, r := range all {
		dep, ok := r.(*qrecord.Dependency)
		if !ok {
			continue
		}
		subj := dep.Envelope().Subject
		graph[subj] = append(graph[subj], dep.Body.DependsOn...)
	}
	return dedupe(graph)
}

// Merge unions two graphs' edge sets per subject, per §4.5/§3: "when
// both declare edges for the same subject, the union of target sets
// is used."
func Merge(a, b Graph) Graph {
	out := make(Graph)
	for subj, deps := range a {
		out[subj] = append(out[subj], deps...)
	}
	for subj, deps := range b {
		out[subj] = append(out[subj], deps...)
	}
	return dedupe(out)
}

func dedupe(g Graph) Graph {
	out := make(Graph, len(g))
	for subj, deps := range g {
		seen := make(map[string]bool, len(deps))
		var uniq []string
		for _, d := range deps {
			if !seen[d] {
				seen[d] = true
				uniq = append(uniq, d)
			}
		}
		sort.Strings(uniq)
		out[subj] = uniq
	}
	return out
}

// Subjects returns every subject name appearing anywhere in the
// graph, either as a key or as a dependency target, sorted
// lexicographically. A subject that appears only as a dependency
// target is implicitly present (§3) and has no outbound edges here.
func (g Graph) Subjects() []string {
	seen := make(map[string]bool)
	for subj, deps := range g {
		seen[subj] = true
		for _, d := range deps {
			seen[d] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TopoSort returns a linear order over every subject in the graph
// (and every subject named only as a dependency target) such that
// every subject appears after all of its dependencies. The order is a
// depth-first post-order that visits start subjects and each subject's
// dependencies in lexicographic order, so it is deterministic; it does
// not place independent subjects in lexicographic order relative to
// each other (for a->z plus a lone b the order is z, a, b). Returns a
// *qerr.CycleError (kind GraphCycle) if the graph is not a DAG.
func TopoSort(g Graph) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	order := make([]string, 0, len(g))

	var cycleErr error
	var visit func(subj string, path []string)
	visit = func(subj string, path []string) {
		if cycleErr != nil {
			return
		}
		color[subj] = gray
		path = append(path, subj)

		deps := append([]string(nil), g[subj]...)
		sort.Strings(deps)
		for _, d := range deps {
			switch color[d] {
			case gray:
				cycle := []string{}
				for i, p := range path {
					if p == d {
						cycle = append(cycle, path[i:]...)
						break
					}
				}
				cycle = append(cycle, d)
				cycleErr = qerr.NewCycleError(qerr.KindGraphCycle, cycle)
				return
			case white:
				visit(d, path)
				if cycleErr != nil {
					return
				}
			}
		}
		color[subj] = black
		order = append(order, subj)
	}

	for _, subj := range g.Subjects() {
		if color[subj] == white {
			visit(subj, nil)
			if cycleErr != nil {
				return nil, cycleErr
			}
		}
	}
	return order, nil
}
