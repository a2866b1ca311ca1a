// Package qcompact implements §4.7 compaction: pruning superseded
// records from a single record file, and optionally collapsing each
// subject's surviving scored records into one epoch snapshot, with
// atomic durability and a dry-run preview mode.
package qcompact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
	"github.com/qualifier-dev/qualifier/pkg/qrecord"
	"github.com/qualifier-dev/qualifier/pkg/qscore"
	"github.com/qualifier-dev/qualifier/pkg/qstore"
)

// parseStrict parses a record file's bytes, returning the decoded
// records and any line-level diagnostics. Compaction treats any
// diagnostic as fatal: rewriting a file whose contents weren't fully
// understood risks silently dropping a record compaction didn't
// recognize, which §4.7's durability contract forbids.
func parseStrict(data []byte) ([]qrecord.Record, []*qerr.LineError) {
	return qstore.ParseRecords(data)
}

// Mode selects between the two compaction transforms.
type Mode int

const (
	// ModePrune drops every record superseded by another record in the
	// file, preserving the relative order of survivors.
	ModePrune Mode = iota
	// ModeSnapshot additionally collapses each subject's surviving
	// scored records into a single epoch record.
	ModeSnapshot
)

// Result reports record counts for a compaction run.
type Result struct {
	Before int
	After  int
	Pruned int
}

// Plan computes the output record list and result counts for
// compacting records under mode, without touching any filesystem —
// this is the dry-run preview path as well as the core of Compact.
// now is the RFC 3339 timestamp stamped on any synthesized epoch
// record (the clock is an external collaborator per §6). clampMin/
// clampMax bound the raw score folded into a snapshot epoch, mirroring
// §4.4's clamp and overridable the same way (see pkg/qconfig).
func Plan(records []qrecord.Record, mode Mode, now string, clampMin, clampMax int32) ([]qrecord.Record, Result, error) {
	idx := qscore.BuildIndex(records)
	groups := qscore.GroupBySubject(records)

	active := make(map[string]map[string]bool, len(groups))
	rawBySubject := make(map[string]int32, len(groups))
	for subject, subjRecords := range groups {
		activeRecords, err := qscore.ActiveSet(subjRecords, idx)
		if err != nil {
			return nil, Result{}, fmt.Errorf("qcompact: subject %q: %w", subject, err)
		}
		activeIDs := make(map[string]bool, len(activeRecords))
		for _, r := range activeRecords {
			activeIDs[r.ID()] = true
		}
		active[subject] = activeIDs
		rawBySubject[subject] = qscore.RawScore(activeRecords, clampMin, clampMax)
	}

	isActive := func(r qrecord.Record) bool {
		return active[r.Envelope().Subject][r.ID()]
	}
	isScored := func(r qrecord.Record) bool {
		_, ok := r.Score()
		return ok
	}

	var out []qrecord.Record
	switch mode {
	case ModePrune:
		for _, r := range records {
			if !isScored(r) || isActive(r) {
				out = append(out, r)
			}
		}

	case ModeSnapshot:
		emitted := make(map[string]bool, len(groups))
		for _, r := range records {
			if !isScored(r) {
				out = append(out, r)
				continue
			}
			if !isActive(r) {
				continue
			}
			subject := r.Envelope().Subject
			if emitted[subject] {
				continue
			}
			emitted[subject] = true

			refs := make([]string, 0, len(groups[subject]))
			for _, cand := range groups[subject] {
				if isScored(cand) && isActive(cand) {
					refs = append(refs, cand.ID())
				}
			}
			epoch, err := newEpoch(subject, refs, rawBySubject[subject], now)
			if err != nil {
				return nil, Result{}, err
			}
			out = append(out, epoch)
		}

	default:
		return nil, Result{}, fmt.Errorf("qcompact: unknown mode %v", mode)
	}

	result := Result{Before: len(records), After: len(out), Pruned: len(records) - len(out)}
	return out, result, nil
}

func newEpoch(subject string, refs []string, raw int32, now string) (*qrecord.Epoch, error) {
	e := &qrecord.Epoch{
		Env: qrecord.Envelope{
			Metabox:   "1",
			Type:      string(qrecord.TypeEpoch),
			Subject:   subject,
			Author:    qrecord.CompactAuthor,
			CreatedAt: now,
		},
		Body: qrecord.EpochBody{
			Refs:    refs,
			Score:   raw,
			Summary: fmt.Sprintf("Compacted from %d records", len(refs)),
		},
	}
	id, err := qrecord.ComputeID(e)
	if err != nil {
		return nil, fmt.Errorf("qcompact: compute epoch id: %w", err)
	}
	e.Env.ID = id
	return e, nil
}

// Compact reads path, computes the plan for mode, and atomically
// replaces path with the compacted record stream: the new content is
// written to a sibling temp file, flushed, and renamed over the
// original. Any failure before the rename leaves the original file
// untouched, per §4.7/§7's all-or-nothing durability contract.
func Compact(path string, mode Mode, now string, clampMin, clampMax int32) (Result, error) {
	runID := uuid.New().String()
	log := slog.Default().With("component", "qcompact", "run_id", runID, "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("qcompact: read %s: %w", path, err)
	}

	records, lineErrs := parseStrict(data)
	if len(lineErrs) > 0 {
		log.Error("refusing to compact: malformed lines present", "count", len(lineErrs))
		return Result{}, fmt.Errorf("qcompact: %s has %d malformed line(s), refusing to compact: %v", path, len(lineErrs), lineErrs[0])
	}

	out, result, err := Plan(records, mode, now, clampMin, clampMax)
	if err != nil {
		log.Error("compaction plan failed", "error", err)
		return Result{}, err
	}

	if err := atomicWrite(path, out); err != nil {
		log.Error("atomic write failed, original file left intact", "error", err)
		return Result{}, err
	}
	log.Info("compaction complete", "before", result.Before, "after", result.After, "pruned", result.Pruned)
	return result, nil
}

func atomicWrite(path string, records []qrecord.Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("qcompact: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	for _, r := range records {
		canonical, err := qrecord.Canonical(r)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("qcompact: canonicalize: %w", err)
		}
		if _, err := tmp.Write(append(canonical, '\n')); err != nil {
			tmp.Close()
			return fmt.Errorf("qcompact: write temp file: %w", err)
		}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("qcompact: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("qcompact: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("qcompact: rename into place: %w", err)
	}
	return nil
}
