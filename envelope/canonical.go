package envelope

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/scribehq/scribe/digest"
)

// canonicalJSON produces the deterministic serialization used for hashing
// (§4.2). Key order and omission rules are hand-written rather than left to
// encoding/json's struct-tag ordering, because the hash is only reproducible
// if the writer's key order is guaranteed, not merely conventional — see
// the envelope entry of DESIGN.md.
func canonicalJSON(env *Envelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	writeRaw := func(key string, valueJSON []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeJSONString(&buf, key)
		buf.WriteByte(':')
		buf.Write(valueJSON)
	}
	writeString := func(key, value string) {
		b, _ := json.Marshal(value)
		writeRaw(key, b)
	}

	if !env.CommitID.IsZero() {
		writeString("commit_id", digest.ToHex(env.CommitID))
	}
	if !env.ParentID.IsZero() {
		writeString("parent_id", digest.ToHex(env.ParentID))
	}
	if !env.TreeHash.IsZero() {
		writeString("tree_hash", digest.ToHex(env.TreeHash))
	}

	if env.Author != (Author{}) {
		var ab bytes.Buffer
		ab.WriteByte('{')
		afirst := true
		wa := func(k, v string) {
			if v == "" {
				return
			}
			if !afirst {
				ab.WriteByte(',')
			}
			afirst = false
			writeJSONString(&ab, k)
			ab.WriteByte(':')
			vb, _ := json.Marshal(v)
			ab.Write(vb)
		}
		wa("id", env.Author.ID)
		wa("role", env.Author.Role)
		wa("email", env.Author.Email)
		ab.WriteByte('}')
		writeRaw("author", ab.Bytes())
	}

	if env.Process != (Process{}) {
		var pb bytes.Buffer
		pb.WriteByte('{')
		pfirst := true
		wp := func(k, v string) {
			if v == "" {
				return
			}
			if !pfirst {
				pb.WriteByte(',')
			}
			pfirst = false
			writeJSONString(&pb, k)
			pb.WriteByte(':')
			vb, _ := json.Marshal(v)
			pb.Write(vb)
		}
		wp("name", env.Process.Name)
		wp("version", env.Process.Version)
		wp("params", env.Process.Params)
		wp("source", env.Process.Source)
		pb.WriteByte('}')
		writeRaw("process", pb.Bytes())
	}

	if env.Timestamp != 0 {
		writeRaw("timestamp", []byte(strconv.FormatInt(env.Timestamp, 10)))
	}

	if env.Message != "" {
		writeString("message", env.Message)
	}

	if len(env.Changes) > 0 {
		var cb bytes.Buffer
		cb.WriteByte('[')
		for i, c := range env.Changes {
			if i > 0 {
				cb.WriteByte(',')
			}
			writeChangeJSON(&cb, c)
		}
		cb.WriteByte(']')
		writeRaw("changes", cb.Bytes())
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeChangeJSON writes {"table":...,"operation":...,"pk":...,"before_hash":...,"after_hash":...}
// with before_hash/after_hash omitted when the corresponding digest is zero.
func writeChangeJSON(buf *bytes.Buffer, c Change) {
	buf.WriteByte('{')
	first := true
	write := func(key string, valueJSON []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeJSONString(buf, key)
		buf.WriteByte(':')
		buf.Write(valueJSON)
	}
	writeString := func(key, value string) {
		b, _ := json.Marshal(value)
		write(key, b)
	}

	writeString("table", c.Table)
	writeString("operation", string(c.Operation))
	writeString("pk", c.PrimaryKey)
	if !c.BeforeDigest.IsZero() {
		writeString("before_hash", digest.ToHex(c.BeforeDigest))
	}
	if !c.AfterDigest.IsZero() {
		writeString("after_hash", digest.ToHex(c.AfterDigest))
	}
	buf.WriteByte('}')
}

// writeJSONString writes a quoted, escaped JSON string for key.
func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
