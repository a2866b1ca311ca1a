package qrecord

import "fmt"

// Severity distinguishes a structural failure from an advisory
// warning. Fatal messages mean the record should be rejected; Warning
// messages are informational (e.g. a score outside the recommended
// range for its kind).
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// Message is one entry in a Validate report.
type Message struct {
	Field    string   `json:"field"`
	Code     string   `json:"code"`
	Text     string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s: %s (%s)", m.Severity, m.Field, m.Text, m.Code)
}

// recommendedScoreRange is the advisory bound mentioned in spec.md §3
// ("recommended range -100..+100 but any i32 accepted").
const (
	recommendedScoreMin = -100
	recommendedScoreMax = 100
)

// Validate reports envelope completeness, metabox correctness, a
// score outside the recommended range (as a warning), summary
// non-emptiness, subject non-emptiness, supersedes id-format, and
// (fatally) identifier integrity. Score presence is not checked here:
// a typed attestation or epoch body always holds a score, and
// ParseRecord rejects input that lacks one. It never panics on malformed input — every check is a
// plain field comparison.
func Validate(r Record) []Message {
	var msgs []Message
	add := func(field, code, text string, sev Severity) {
		msgs = append(msgs, Message{Field: field, Code: code, Text: text, Severity: sev})
	}

	env := r.Envelope()

	if env.Metabox != "1" {
		add("metabox", "BAD_METABOX", fmt.Sprintf("metabox must be \"1\", got %q", env.Metabox), SeverityFatal)
	}
	if env.Subject == "" {
		add("subject", "REQUIRED", "subject must not be empty", SeverityFatal)
	}
	if env.Author == "" {
		add("author", "REQUIRED", "author must not be empty", SeverityFatal)
	}
	if env.CreatedAt == "" {
		add("created_at", "REQUIRED", "created_at must not be empty", SeverityFatal)
	}
	if err := VerifyID(r); err != nil {
		add("id", "ID_MISMATCH", err.Error(), SeverityFatal)
	}

	if score, has := r.Score(); has {
		if score < recommendedScoreMin || score > recommendedScoreMax {
			add("body.score", "SCORE_OUT_OF_RANGE",
				fmt.Sprintf("score %d outside recommended range [%d, %d]", score, recommendedScoreMin, recommendedScoreMax),
				SeverityWarning)
		}
	}

	switch b := r.RawBody().(type) {
	case AttestationBody:
		if b.Summary == "" {
			add("body.summary", "REQUIRED", "summary must not be empty", SeverityFatal)
		}
		if b.Supersedes != "" && !isHex64(b.Supersedes) {
			add("body.supersedes", "BAD_ID_FORMAT", "supersedes must be a 64-hex record id", SeverityFatal)
		}
	case EpochBody:
		if b.Summary == "" {
			add("body.summary", "REQUIRED", "summary must not be empty", SeverityFatal)
		}
		if len(b.Refs) == 0 {
			add("body.refs", "REQUIRED", "refs must not be empty", SeverityFatal)
		}
	}

	return msgs
}

// HasFatal reports whether msgs contains at least one fatal message.
func HasFatal(msgs []Message) bool {
	for _, m := range msgs {
		if m.Severity == SeverityFatal {
			return true
		}
	}
	return false
}
