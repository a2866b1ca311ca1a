// Package qrecord implements the Qualifier record model (envelope, the
// four body variants, identifier computation, and validation) over the
// Metabox Canonical Form provided by pkg/qmcf.
package qrecord

import (
	"encoding/json"
)

// Kind enumerates the recommended attestation kinds. Any other string
// is accepted — the closed set is advisory, not enforced.
type Kind string

const (
	KindPass       Kind = "pass"
	KindFail       Kind = "fail"
	KindBlocker    Kind = "blocker"
	KindConcern    Kind = "concern"
	KindPraise     Kind = "praise"
	KindSuggestion Kind = "suggestion"
	KindWaiver     Kind = "waiver"
)

// AuthorType enumerates who or what produced an attestation or epoch.
type AuthorType string

const (
	AuthorHuman   AuthorType = "human"
	AuthorAI      AuthorType = "ai"
	AuthorTool    AuthorType = "tool"
	AuthorUnknown AuthorType = "unknown"
)

// TypeTag names the variant discriminant stored in the envelope's
// "type" field. A TypeTag outside this set is a forward-compatible
// Unknown variant.
type TypeTag string

const (
	TypeAttestation TypeTag = "attestation"
	TypeEpoch       TypeTag = "epoch"
	TypeDependency  TypeTag = "dependency"
)

// CompactAuthor is the required author value on every epoch record
// produced by compaction (spec.md §3, Epoch body).
const CompactAuthor = "qualifier/compact"

// Envelope is the six envelope fields present on every stored record;
// the body, the seventh top-level field, is held by each variant.
type Envelope struct {
	Metabox   string `json:"metabox"`
	Type      string `json:"type"`
	Subject   string `json:"subject"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
	ID        string `json:"id"`
}

// Position is a 1-indexed location within a sub-artifact.
type Position struct {
	Line int  `json:"line"`
	Col  *int `json:"col,omitempty"`
}

// Span is an optional addressing range; it never creates a new scoring
// target. End defaults to Start when omitted on input — see
// qmcf.Normalize, which applies that default ahead of canonicalization.
type Span struct {
	Start Position  `json:"start"`
	End   *Position `json:"end,omitempty"`
}

// AttestationBody is the body of a `type: "attestation"` record.
type AttestationBody struct {
	Kind         string   `json:"kind"`
	Score        int32    `json:"score"`
	Summary      string   `json:"summary"`
	Detail       string   `json:"detail,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
	Ref          string   `json:"ref,omitempty"`
	AuthorType   string   `json:"author_type,omitempty"`
	Supersedes   string   `json:"supersedes,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Span         *Span    `json:"span,omitempty"`
}

// EpochBody is the body of a `type: "epoch"` record, produced only by
// compaction's snapshot mode.
type EpochBody struct {
	Refs       []string `json:"refs"`
	Score      int32    `json:"score"`
	Summary    string   `json:"summary"`
	Span       *Span    `json:"span,omitempty"`
	AuthorType string   `json:"author_type,omitempty"`
}

// DependencyBody is the body of a `type: "dependency"` record. It
// carries no score and cannot be superseded.
type DependencyBody struct {
	DependsOn []string `json:"depends_on"`
}

// Record is the polymorphic capability set every variant exposes:
// envelope accessors, identifier, type tag, an optional score
// accessor, an optional supersedes accessor, and a body view.
type Record interface {
	Envelope() Envelope
	ID() string
	TypeTag() string
	// Score returns the body's score and true if this variant carries
	// one (attestation, epoch); a zero score still reports true.
	Score() (int32, bool)
	// SupersedesID returns the id this record supersedes, if any.
	SupersedesID() (string, bool)
	// RawBody returns the body as a generic JSON value, suitable for
	// re-canonicalization via qmcf.ToGenericBody or direct use when the
	// body is already generic (Unknown).
	RawBody() interface{}
}

// Attestation is the Record implementation for type "attestation".
type Attestation struct {
	Env  Envelope
	Body AttestationBody
}

func (a *Attestation) Envelope() Envelope        { return a.Env }
func (a *Attestation) ID() string                { return a.Env.ID }
func (a *Attestation) TypeTag() string            { return string(TypeAttestation) }
func (a *Attestation) Score() (int32, bool)       { return a.Body.Score, true }
func (a *Attestation) RawBody() interface{}       { return a.Body }
func (a *Attestation) SupersedesID() (string, bool) {
	if a.Body.Supersedes == "" {
		return "", false
	}
	return a.Body.Supersedes, true
}

// Epoch is the Record implementation for type "epoch".
type Epoch struct {
	Env  Envelope
	Body EpochBody
}

func (e *Epoch) Envelope() Envelope          { return e.Env }
func (e *Epoch) ID() string                  { return e.Env.ID }
func (e *Epoch) TypeTag() string             { return string(TypeEpoch) }
func (e *Epoch) Score() (int32, bool)        { return e.Body.Score, true }
func (e *Epoch) RawBody() interface{}        { return e.Body }
func (e *Epoch) SupersedesID() (string, bool) { return "", false }

// Dependency is the Record implementation for type "dependency". It
// carries no score and cannot supersede or be superseded.
type Dependency struct {
	Env  Envelope
	Body DependencyBody
}

func (d *Dependency) Envelope() Envelope          { return d.Env }
func (d *Dependency) ID() string                  { return d.Env.ID }
func (d *Dependency) TypeTag() string             { return string(TypeDependency) }
func (d *Dependency) Score() (int32, bool)        { return 0, false }
func (d *Dependency) RawBody() interface{}        { return d.Body }
func (d *Dependency) SupersedesID() (string, bool) { return "", false }

// Unknown is the Record implementation for any type not in
// {attestation, epoch, dependency}. Its body is preserved verbatim as
// the generic map decoded from JSON, so a read-then-rewrite round trip
// is lossless for record kinds this implementation does not understand.
type Unknown struct {
	Env  Envelope
	Body map[string]interface{}
}

func (u *Unknown) Envelope() Envelope          { return u.Env }
func (u *Unknown) ID() string                  { return u.Env.ID }
func (u *Unknown) TypeTag() string             { return u.Env.Type }
func (u *Unknown) Score() (int32, bool)        { return 0, false }
func (u *Unknown) RawBody() interface{}        { return u.Body }
func (u *Unknown) SupersedesID() (string, bool) { return "", false }

// unmarshalBody is a small helper shared by ParseRecord: re-marshal the
// generic body map and unmarshal it into a typed struct, so json tags
// drive the mapping exactly as they would for any other Go struct.
func unmarshalBody(generic map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(generic)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
