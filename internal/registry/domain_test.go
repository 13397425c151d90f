package registry

import (
	"encoding/json"
	"testing"
)

func TestStatusOrdering(t *testing.T) {
	if !(StatusCreated < StatusVerified && StatusVerified < StatusFinalized) {
		t.Error("status ordinals must be strictly increasing")
	}
}

func TestStatusNext(t *testing.T) {
	next, ok := StatusCreated.Next()
	if !ok || next != StatusVerified {
		t.Errorf("Created.Next() = %s,%v", next, ok)
	}
	next, ok = StatusVerified.Next()
	if !ok || next != StatusFinalized {
		t.Errorf("Verified.Next() = %s,%v", next, ok)
	}
	if _, ok := StatusFinalized.Next(); ok {
		t.Error("Finalized must be terminal")
	}
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(StatusVerified)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"Verified"` {
		t.Errorf("marshal = %s, want \"Verified\"", data)
	}

	var s Status
	if err := json.Unmarshal([]byte(`"Finalized"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != StatusFinalized {
		t.Errorf("unmarshal = %s, want Finalized", s)
	}

	if err := json.Unmarshal([]byte(`"Shipped"`), &s); err == nil {
		t.Error("unknown status should fail to unmarshal")
	}
	if _, err := json.Marshal(Status(9)); err == nil {
		t.Error("unknown status should fail to marshal")
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleManufacturer, RoleDistributor, RoleRetailer} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	for _, r := range []Role{"", "manager", "supplier", "Manufacturer"} {
		if r.Valid() {
			t.Errorf("%q should be invalid", r)
		}
	}
}

func TestProductURI(t *testing.T) {
	p := Product{ID: 42}
	if got := p.URI(); got != "/product/42" {
		t.Errorf("URI = %s, want /product/42", got)
	}
	// Large ids must render as plain decimal, no formatting ambiguity.
	p = Product{ID: 18446744073709551615}
	if got := p.URI(); got != "/product/18446744073709551615" {
		t.Errorf("URI = %s", got)
	}
}
