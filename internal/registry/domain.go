// Package registry implements the product lifecycle state machine.
//
// A Product moves forward through Created -> Verified -> Finalized. Each
// transition is guarded by the caller's role: manufacturers create,
// distributors verify, retailers finalize. Transitions on the same product
// are serialized; products are independent of one another.
package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chaintrace/registry/internal/errors"
)

// Status is the ordinal lifecycle state of a product.
type Status uint8

const (
	StatusCreated Status = iota
	StatusVerified
	StatusFinalized
)

var statusNames = map[Status]string{
	StatusCreated:   "Created",
	StatusVerified:  "Verified",
	StatusFinalized: "Finalized",
}

// String returns the display name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Next returns the status that follows s. Finalized is terminal.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusCreated:
		return StatusVerified, true
	case StatusVerified:
		return StatusFinalized, true
	default:
		return s, false
	}
}

// MarshalJSON renders the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", uint8(s))
	}
	return json.Marshal(name)
}

// UnmarshalJSON accepts a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus maps a status name to its ordinal value.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Role determines which transitions a caller may invoke.
type Role string

const (
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
	RoleRetailer     Role = "retailer"
)

// Valid reports whether r is a role the registry recognizes.
func (r Role) Valid() bool {
	switch r {
	case RoleManufacturer, RoleDistributor, RoleRetailer:
		return true
	}
	return false
}

// Caller identifies who is invoking a transition. Identity and role come
// from an external identity provider; the registry only evaluates the role
// tag and records the identity as owner on creation.
type Caller struct {
	ID   string
	Role Role
}

// Product is the unit record tracked by the registry.
// Every field except Status is immutable after creation.
type Product struct {
	ID            uint64 `json:"id" db:"id"`
	BatchID       string `json:"batch_id" db:"batch_id"`
	Certification string `json:"certification" db:"certification"`
	Origin        string `json:"origin" db:"origin"`
	CreatedAt     int64  `json:"created_at" db:"created_at"` // unix seconds, caller-supplied
	Owner         string `json:"owner" db:"owner"`
	Status        Status `json:"status" db:"status"`
}

// URI returns the human-readable reference for the product,
// used by external code to encode scannable links.
func (p Product) URI() string {
	return "/product/" + strconv.FormatUint(p.ID, 10)
}

// CreateInput carries the caller-supplied fields of a new product.
type CreateInput struct {
	BatchID       string `json:"batch_id"`
	Certification string `json:"certification"`
	Origin        string `json:"origin"`
	CreatedAt     int64  `json:"created_at"`
}

// Normalized returns the input with surrounding whitespace trimmed from
// every string field.
func (in CreateInput) Normalized() CreateInput {
	in.BatchID = strings.TrimSpace(in.BatchID)
	in.Certification = strings.TrimSpace(in.Certification)
	in.Origin = strings.TrimSpace(in.Origin)
	return in
}

// Validate checks the create preconditions: every string field non-empty
// after trimming, timestamp positive. Every commit path applies this
// before touching its backing store or broadcasting to a node.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.BatchID) == "" {
		return errors.Validation("batch id is required")
	}
	if strings.TrimSpace(in.Certification) == "" {
		return errors.Validation("certification is required")
	}
	if strings.TrimSpace(in.Origin) == "" {
		return errors.Validation("origin is required")
	}
	if in.CreatedAt <= 0 {
		return errors.Validation("created_at must be a positive unix timestamp")
	}
	return nil
}
