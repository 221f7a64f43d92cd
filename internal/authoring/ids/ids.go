// Package ids allocates editor-side identifiers and tells them apart from server ids.
package ids

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind says where an identifier came from.
type Kind uint8

const (
	// Local ids are minted by an Allocator and never sent to the server as a resource id.
	Local Kind = iota + 1
	// Persisted ids were issued by the server.
	Persisted
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Persisted:
		return "persisted"
	default:
		return "unknown"
	}
}

// Entity names the kind of thing an id belongs to.
type Entity string

const (
	EntitySection  Entity = "section"
	EntityLecture  Entity = "lecture"
	EntityQuiz     Entity = "quiz"
	EntityQuestion Entity = "question"
	EntityAnswer   Entity = "answer"
)

// ID is an identifier tagged with its kind. The zero value is not a valid id.
// IDs are comparable and can be used as map keys.
type ID struct {
	kind  Kind
	value string
}

// FromServer wraps a server-issued identifier.
func FromServer(value string) ID {
	return ID{kind: Persisted, value: value}
}

// IsLocal reports whether the id was minted in the editor.
func (id ID) IsLocal() bool { return id.kind == Local }

// IsPersisted reports whether the id was issued by the server.
func (id ID) IsPersisted() bool { return id.kind == Persisted }

// IsZero reports whether id is unset.
func (id ID) IsZero() bool { return id.kind == 0 }

// Kind returns the id kind.
func (id ID) Kind() Kind { return id.kind }

// Value returns the raw identifier.
func (id ID) Value() string { return id.value }

func (id ID) String() string {
	if id.IsZero() {
		return "<none>"
	}
	return id.kind.String() + ":" + id.value
}

type wireID struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(wireID{Kind: id.kind.String(), Value: id.value})
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var w wireID
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	switch w.Kind {
	case "local":
		*id = ID{kind: Local, value: w.Value}
	case "persisted":
		*id = ID{kind: Persisted, value: w.Value}
	default:
		return fmt.Errorf("decode id: unknown kind %q", w.Kind)
	}
	return nil
}

// Allocator mints Local ids for one editing session. It is safe for concurrent use.
type Allocator struct {
	session string
	seq     atomic.Uint64
}

// NewAllocator creates an allocator with a fresh random session token.
func NewAllocator() *Allocator {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &Allocator{session: token[:12]}
}

// New returns an id unique for the lifetime of the allocator.
func (a *Allocator) New(e Entity) ID {
	n := a.seq.Add(1)
	return ID{kind: Local, value: fmt.Sprintf("%s-%s-%d", e, a.session, n)}
}
