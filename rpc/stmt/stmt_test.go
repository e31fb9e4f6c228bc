package stmt

import "testing"

// TestAddSchemaItem checks case folding and duplicate rejection
func TestAddSchemaItem(t *testing.T) {
	s := NewStmt(KindInsert)

	if !s.AddSchemaItem("ID") || !s.AddSchemaItem("title") {
		t.Fatal("unique columns rejected")
	}
	if s.AddSchemaItem("id") {
		t.Error("duplicate column accepted after case folding")
	}
	if s.SchemaLen != 2 {
		t.Errorf("schema length = %d, want 2", s.SchemaLen)
	}
	if s.InsertSchema[0] != "id" {
		t.Errorf("column not case-folded: %q", s.InsertSchema[0])
	}
}

// TestCheckInsertIntegrity walks a two-row insert, then breaks it
func TestCheckInsertIntegrity(t *testing.T) {
	s := NewStmt(KindInsert)
	s.AddSchemaItem("id")
	s.AddSchemaItem("title")

	// first row: two values
	s.InsertValues = append(s.InsertValues,
		InsertValue{Type: ValueInt, IntVal: 1},
		InsertValue{Type: ValueString, StringVal: "hello"},
	)
	if !s.CheckInsertIntegrity() {
		t.Fatal("complete first row rejected")
	}

	// second row: one value short
	s.InsertValues = append(s.InsertValues, InsertValue{Type: ValueInt, IntVal: 2})
	if s.CheckInsertIntegrity() {
		t.Fatal("short second row accepted")
	}
	if s.RowsAffected != 2 {
		t.Errorf("rows affected = %d, want 2", s.RowsAffected)
	}
}

// TestNeedsWriteAccess spot-checks the read/write split
func TestNeedsWriteAccess(t *testing.T) {
	writers := []Kind{KindInsert, KindReplace, KindDelete, KindUpdate, KindTruncateRTIndex}
	for _, k := range writers {
		if !k.NeedsWriteAccess() {
			t.Errorf("%v should need write access", k)
		}
	}
	readers := []Kind{KindSelect, KindShowStatus, KindShowMeta, KindDescribe, KindExplain}
	for _, k := range readers {
		if k.NeedsWriteAccess() {
			t.Errorf("%v should not need write access", k)
		}
	}
}
