package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestClassPrefixes(t *testing.T) {
	cases := map[CIClass]string{
		CIClassHardware:  "HW",
		CIClassSoftware:  "SW",
		CIClassService:   "SVC",
		CIClassDocument:  "DOC",
		CIClassNetwork:   "NET",
		CIClassCloud:     "CLD",
		CIClassContainer: "CTR",
		CIClassDatabase:  "DB",
		CIClassVirtual:   "VM",
	}
	for class, want := range cases {
		got, err := class.Prefix()
		if err != nil {
			t.Errorf("%s: %v", class, err)
			continue
		}
		if got != want {
			t.Errorf("%s: expected prefix %s, got %s", class, want, got)
		}
	}

	if _, err := CIClass("MAINFRAME").Prefix(); err == nil {
		t.Error("expected error for unknown class")
	}
}

func TestFormatCICode(t *testing.T) {
	cases := []struct {
		prefix string
		seq    int64
		want   string
	}{
		{"HW", 1, "HW-00001"},
		{"HW", 42, "HW-00042"},
		{"SVC", 99999, "SVC-99999"},
		// Sequences past five digits widen rather than wrap.
		{"DB", 123456, "DB-123456"},
	}
	for _, c := range cases {
		if got := FormatCICode(c.prefix, c.seq); got != c.want {
			t.Errorf("FormatCICode(%s, %d) = %s, want %s", c.prefix, c.seq, got, c.want)
		}
	}
}

func TestNewConfigurationItemDefaults(t *testing.T) {
	ci := NewConfigurationItem(CIClassHardware, "rack-42", "alice")
	if ci.Status != CIStatusActive {
		t.Errorf("expected ACTIVE, got %s", ci.Status)
	}
	if ci.Criticality != CICriticalityMedium {
		t.Errorf("expected MEDIUM, got %s", ci.Criticality)
	}
	if ci.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if ci.Disposed() {
		t.Error("new CI must not be disposed")
	}
}

func TestRelationshipTypeValid(t *testing.T) {
	if !RelationshipDependsOn.Valid() {
		t.Error("DEPENDS_ON should be valid")
	}
	if RelationshipType("FRIENDS_WITH").Valid() {
		t.Error("unknown type should be invalid")
	}
	for _, rt := range DefaultTraversalTypes() {
		if !rt.Valid() {
			t.Errorf("default traversal type %s is not valid", rt)
		}
	}
}
