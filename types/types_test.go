package types

import "testing"

func TestInvoiceValidateRequiresBindleVersion(t *testing.T) {
	inv := Invoice{Bindle: BindleSpec{Name: "foo", Version: "1.0.0"}}
	if err := inv.Validate(); err == nil {
		t.Error("expected error for missing bindleVersion")
	}
}

func TestInvoiceValidateRejectsBadID(t *testing.T) {
	inv := Invoice{BindleVersion: "1.0.0", Bindle: BindleSpec{Name: "foo", Version: "not-a-version"}}
	if err := inv.Validate(); err == nil {
		t.Error("expected error for invalid id")
	}
}

func TestInvoiceValidateRejectsDuplicateGroups(t *testing.T) {
	inv := Invoice{
		BindleVersion: "1.0.0",
		Bindle:        BindleSpec{Name: "foo", Version: "1.0.0"},
		Group:         []Group{{Name: "g"}, {Name: "g"}},
	}
	if err := inv.Validate(); err == nil {
		t.Error("expected error for duplicate group names")
	}
}

func TestInvoiceValidateRejectsUnknownGroupReference(t *testing.T) {
	inv := Invoice{
		BindleVersion: "1.0.0",
		Bindle:        BindleSpec{Name: "foo", Version: "1.0.0"},
		Parcel: []Parcel{
			{Label: Label{SHA256: "abc"}, Conditions: &Condition{MemberOf: []string{"missing"}}},
		},
	}
	if err := inv.Validate(); err == nil {
		t.Error("expected error for parcel referencing unknown group")
	}
}

func TestInvoiceValidateAccepts(t *testing.T) {
	inv := Invoice{
		BindleVersion: "1.0.0",
		Bindle:        BindleSpec{Name: "foo", Version: "1.0.0"},
		Group:         []Group{{Name: "g"}},
		Parcel: []Parcel{
			{Label: Label{SHA256: "abc"}, Conditions: &Condition{MemberOf: []string{"g"}}},
		},
	}
	if err := inv.Validate(); err != nil {
		t.Errorf("expected valid invoice, got %v", err)
	}
}

func TestCanonicalNameStable(t *testing.T) {
	inv := Invoice{Bindle: BindleSpec{Name: "foo/bar", Version: "1.0.0"}}
	a, err := inv.CanonicalName()
	if err != nil {
		t.Fatalf("CanonicalName: %v", err)
	}
	b, _ := inv.CanonicalName()
	if a != b || len(a) != 64 {
		t.Errorf("CanonicalName() = %q, want stable 64-char hex", a)
	}
}

func TestIsYanked(t *testing.T) {
	inv := Invoice{}
	if inv.IsYanked() {
		t.Error("nil Yanked should not be yanked")
	}
	yes := true
	inv.Yanked = &yes
	if !inv.IsYanked() {
		t.Error("Yanked=true should report yanked")
	}
}

func TestHasGroupAndGroupMembers(t *testing.T) {
	inv := Invoice{
		Group: []Group{{Name: "g1"}},
		Parcel: []Parcel{
			{Label: Label{SHA256: "a"}, Conditions: &Condition{MemberOf: []string{"g1"}}},
			{Label: Label{SHA256: "b"}},
		},
	}
	if !inv.HasGroup("g1") {
		t.Error("expected HasGroup(g1)")
	}
	if inv.HasGroup("missing") {
		t.Error("did not expect HasGroup(missing)")
	}
	members := inv.GroupMembers("g1")
	if len(members) != 1 || members[0].Label.SHA256 != "a" {
		t.Errorf("GroupMembers(g1) = %+v", members)
	}
	if inv.GroupMembers("missing") != nil {
		t.Error("expected nil members for unknown group")
	}
}

func TestLabelNormalizedMediaType(t *testing.T) {
	l := Label{}
	if l.NormalizedMediaType() != "application/octet-stream" {
		t.Errorf("expected default media type, got %q", l.NormalizedMediaType())
	}
	l.MediaType = "text/plain"
	if l.NormalizedMediaType() != "text/plain" {
		t.Errorf("expected explicit media type preserved, got %q", l.NormalizedMediaType())
	}
}

func TestQueryOptionsQueryString(t *testing.T) {
	q := "foo"
	v := "1.0.0"
	strict := true
	opts := QueryOptions{Query: &q, Version: &v, Strict: &strict}
	got := opts.QueryString()
	want := "?q=foo&v=1.0.0&strict=true"
	if got != want {
		t.Errorf("QueryString() = %q, want %q", got, want)
	}
}

func TestQueryOptionsQueryStringEmpty(t *testing.T) {
	opts := QueryOptions{}
	if got := opts.QueryString(); got != "?" {
		t.Errorf("QueryString() = %q, want %q", got, "?")
	}
}

func TestParcelMemberOfAndIsGlobalGroup(t *testing.T) {
	p := NewParcel("f", "", []byte("data"))
	if !p.IsGlobalGroup() {
		t.Error("parcel with no conditions should be global")
	}
	p.Conditions = &Condition{MemberOf: []string{"g"}}
	if p.IsGlobalGroup() {
		t.Error("parcel with memberOf should not be global")
	}
	if !p.MemberOf("g") {
		t.Error("expected MemberOf(g)")
	}
	if p.MemberOf("other") {
		t.Error("did not expect MemberOf(other)")
	}
}
