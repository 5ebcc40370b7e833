// Package id provides the TypeID identifiers used by jobq. A job ID looks
// like "job_01h455vb4pex5vsknk084sn02q"; worker slots use the "wkr" prefix.
// IDs sort by creation time and are safe to embed in URLs.
package id

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix is the entity tag in front of the underscore.
type Prefix string

const (
	PrefixJob    Prefix = "job"
	PrefixWorker Prefix = "wkr"
)

// ErrEmpty is returned when parsing an empty string.
var ErrEmpty = errors.New("id: empty string")

// ID is a TypeID. The zero value is Nil and renders as "".
//
//nolint:recvcheck // value receivers for reads, pointer receivers for decoding
type ID struct {
	tid typeid.TypeID
	set bool
}

// Nil is the zero-value ID.
var Nil ID

// JobID identifies a job.
type JobID = ID

// WorkerID identifies a worker slot.
type WorkerID = ID

// NewJobID generates a job ID.
func NewJobID() JobID { return generate(PrefixJob) }

// NewWorkerID generates a worker slot ID.
func NewWorkerID() WorkerID { return generate(PrefixWorker) }

// ParseJobID parses s and requires the "job" prefix.
func ParseJobID(s string) (JobID, error) { return parse(s, PrefixJob) }

// ParseWorkerID parses s and requires the "wkr" prefix.
func ParseWorkerID(s string) (WorkerID, error) { return parse(s, PrefixWorker) }

// Parse parses s with any prefix.
func Parse(s string) (ID, error) { return parse(s, "") }

func generate(p Prefix) ID {
	tid, err := typeid.Generate(string(p))
	if err != nil {
		// Prefixes are package constants.
		panic(fmt.Sprintf("id: generate %q: %v", p, err))
	}
	return ID{tid: tid, set: true}
}

// parse decodes s. An empty want accepts any prefix.
func parse(s string, want Prefix) (ID, error) {
	if s == "" {
		return Nil, ErrEmpty
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if want != "" && Prefix(tid.Prefix()) != want {
		return Nil, fmt.Errorf("id: %q has prefix %q, want %q", s, tid.Prefix(), want)
	}
	return ID{tid: tid, set: true}, nil
}

// String returns the "prefix_suffix" form, or "" for Nil.
func (i ID) String() string {
	if !i.set {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.set {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.set }

// MarshalText encodes i as its string form. Nil encodes as empty text.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText decodes any prefix. Empty text decodes to Nil.
func (i *ID) UnmarshalText(data []byte) error {
	return i.decode(string(data))
}

// Value stores Nil as NULL and anything else as its string form.
func (i ID) Value() (driver.Value, error) {
	if !i.set {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.String(), nil
}

// Scan accepts NULL, string and []byte columns.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.decode(v)
	case []byte:
		return i.decode(string(v))
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}

func (i *ID) decode(s string) error {
	if s == "" {
		*i = Nil
		return nil
	}
	parsed, err := parse(s, "")
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
