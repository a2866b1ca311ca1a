package qstore

import (
	"fmt"
	"os"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
	"github.com/qualifier-dev/qualifier/pkg/qrecord"
)

// RecordFile is the result of parsing one record file: every record
// that decoded successfully, plus a diagnostic for every line that
// didn't. A file with parse errors still returns its good records —
// callers decide whether any Errors are fatal to the operation at hand.
type RecordFile struct {
	Path    string
	Records []qrecord.Record
	Errors  []*qerr.LineError
}

// ParseRecords decodes JSONL record data into Records, tolerating
// comments and blank lines (see ParseLines) and accumulating a
// LineError for every line that is valid JSON but not a valid record
// (missing envelope field, unknown-but-malformed body, etc).
func ParseRecords(data []byte) ([]qrecord.Record, []*qerr.LineError) {
	lines, errs := ParseLines(data)

	records := make([]qrecord.Record, 0, len(lines))
	for _, pl := range lines {
		r, err := qrecord.ParseRecord(pl.Object)
		if err != nil {
			errs = append(errs, qerr.NewLineError(pl.LineNo, qerr.KindInvalidBody, err))
			continue
		}
		records = append(records, r)
	}
	return records, errs
}

// ParseFile reads path and parses it as a record file.
func ParseFile(path string) (*RecordFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("qstore: read %s: %w", path, err)
	}
	records, errs := ParseRecords(data)
	return &RecordFile{Path: path, Records: records, Errors: errs}, nil
}

// Append writes r's canonical form to path followed by a newline,
// creating the file if it does not exist. The write is flushed to
// stable storage before Append returns, matching the append-only
// durability contract the rest of the system assumes record files
// honor.
func Append(path string, r qrecord.Record) error {
	canonical, err := qrecord.Canonical(r)
	if err != nil {
		return fmt.Errorf("qstore: canonicalize: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("qstore: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(canonical, '\n')); err != nil {
		return fmt.Errorf("qstore: write %s: %w", path, err)
	}
	return f.Sync()
}

// AppendAll writes a batch of records to path in order, under a single
// open/flush, for callers producing many records at once.
func AppendAll(path string, records []qrecord.Record) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("qstore: open %s: %w", path, err)
	}
	defer f.Close()

	for _, r := range records {
		canonical, err := qrecord.Canonical(r)
		if err != nil {
			return fmt.Errorf("qstore: canonicalize: %w", err)
		}
		if _, err := f.Write(append(canonical, '\n')); err != nil {
			return fmt.Errorf("qstore: write %s: %w", path, err)
		}
	}
	return f.Sync()
}
