// Package qstore implements the record file format: JSONL parsing with
// comment/blank-line tolerance, append-only writes, and directory
// discovery of record files and the project root.
package qstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qualifier-dev/qualifier/pkg/qerr"
)

// ParsedLine is one successfully decoded, non-comment, non-blank JSONL
// line, with its 1-indexed line number preserved for diagnostics.
type ParsedLine struct {
	LineNo int
	Object map[string]interface{}
}

// ParseLines splits data into lines, skips blank lines and lines whose
// first non-whitespace characters are "//", decodes every other line as
// a JSON object, and returns both the successfully decoded lines and
// the line-indexed errors for anything that failed to parse. Malformed
// lines never stop the scan — parsing continues to the end of the file.
func ParseLines(data []byte) ([]ParsedLine, []*qerr.LineError) {
	var parsed []ParsedLine
	var errs []*qerr.LineError

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			continue
		}

		var obj map[string]interface{}
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			errs = append(errs, qerr.NewLineError(lineNo, qerr.KindMalformedRecord, err))
			continue
		}

		parsed = append(parsed, ParsedLine{LineNo: lineNo, Object: obj})
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, qerr.NewLineError(lineNo+1, qerr.KindIO, fmt.Errorf("scan: %w", err)))
	}

	return parsed, errs
}
