package envelope

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"

	"github.com/scribehq/scribe/internal/errs"
)

// exportForm mirrors Envelope for human/JSON export (§6 "Canonical commit
// JSON"), reusing Go's struct tags since, unlike the hashing path, exact
// key ordering is not load-bearing for this form — it's for interchange and
// display, not the cryptographic preimage.
type exportForm struct {
	CommitID  string   `json:"commit_id,omitempty"`
	ParentID  string   `json:"parent_id,omitempty"`
	TreeHash  string   `json:"tree_hash,omitempty"`
	Author    *Author  `json:"author,omitempty"`
	Process   *Process `json:"process,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Message   string   `json:"message,omitempty"`
	Changes   []changeExportForm `json:"changes,omitempty"`
}

type changeExportForm struct {
	Table      string `json:"table"`
	Operation  string `json:"operation"`
	PrimaryKey string `json:"pk"`
	BeforeHash string `json:"before_hash,omitempty"`
	AfterHash  string `json:"after_hash,omitempty"`
}

func (env *Envelope) toExportForm() exportForm {
	out := exportForm{
		Timestamp: env.Timestamp,
		Message:   env.Message,
	}
	if !env.CommitID.IsZero() {
		out.CommitID = env.CommitID.String()
	}
	if !env.ParentID.IsZero() {
		out.ParentID = env.ParentID.String()
	}
	if !env.TreeHash.IsZero() {
		out.TreeHash = env.TreeHash.String()
	}
	if env.Author != (Author{}) {
		a := env.Author
		out.Author = &a
	}
	if env.Process != (Process{}) {
		p := env.Process
		out.Process = &p
	}
	for _, c := range env.Changes {
		ce := changeExportForm{
			Table:      c.Table,
			Operation:  string(c.Operation),
			PrimaryKey: c.PrimaryKey,
		}
		if !c.BeforeDigest.IsZero() {
			ce.BeforeHash = c.BeforeDigest.String()
		}
		if !c.AfterDigest.IsZero() {
			ce.AfterHash = c.AfterDigest.String()
		}
		out.Changes = append(out.Changes, ce)
	}
	return out
}

// ToJSON renders the full export form (including commit_id), for `log
// --json` and interchange.
func (env *Envelope) ToJSON() ([]byte, error) {
	b, err := json.Marshal(env.toExportForm())
	if err != nil {
		return nil, errs.Wrap(errs.NOMEM, err)
	}
	return b, nil
}

// MarshalCBOR renders a canonical (deterministic map ordering) CBOR
// encoding of the export form, an alternate binary interoperable form
// alongside canonical JSON. commit_id is still derived from canonical JSON
// only; this is export, not an alternate hash preimage.
func (env *Envelope) MarshalCBOR() ([]byte, error) {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		return nil, errs.Wrap(errs.NOMEM, err)
	}
	b, err := mode.Marshal(env.toExportForm())
	if err != nil {
		return nil, errs.Wrap(errs.NOMEM, err)
	}
	return b, nil
}
