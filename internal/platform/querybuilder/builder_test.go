package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("*").
		From("mappings").
		Where(Eq("source_id", "133600")).
		OrderBy("source_id").
		Limit(5).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT * FROM mappings WHERE source_id = $1 ORDER BY source_id LIMIT 5"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "133600" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilderInCondition(t *testing.T) {
	query, args, err := Select("*").
		From("mappings").
		Where(In("tier", []any{"exact", "partial"})).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT * FROM mappings WHERE tier IN ($1, $2)"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilderEmptyInMatchesNothing(t *testing.T) {
	query, _, err := Select("*").
		From("mappings").
		Where(In("tier", nil)).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT * FROM mappings WHERE 1=0"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
}

func TestInsertBuilder(t *testing.T) {
	query, args, err := InsertInto("mappings").
		Columns("source_id", "target_id").
		Values("133600", "67").
		Suffix("ON CONFLICT (source_id) DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO mappings (source_id, target_id) VALUES ($1, $2) ON CONFLICT (source_id) DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "133600" || args[1] != "67" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilderColumnValueMismatch(t *testing.T) {
	_, _, err := InsertInto("mappings").
		Columns("source_id", "target_id").
		Values("133600").
		ToSQL()
	if err == nil {
		t.Fatal("expected error for column/value count mismatch")
	}
}

func TestUpdateBuilder(t *testing.T) {
	query, args, err := Update("mappings").
		Set("flagged", true).
		Where(Eq("source_id", "133600")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE mappings SET flagged = $1 WHERE source_id = $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != true || args[1] != "133600" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertModelUsesDBTagsAndSkips(t *testing.T) {
	type row struct {
		ID       int64  `db:"id"`
		SourceID string `db:"source_id"`
		TargetID string `db:"target_id"`
		internal string `db:"hidden"`
		NoTag    string
	}

	query, args, err := InsertModel("mappings", row{ID: 9, SourceID: "133600", TargetID: "67"}, "", "id")
	if err != nil {
		t.Fatalf("build insert from model: %v", err)
	}

	wantQuery := "INSERT INTO mappings (source_id, target_id) VALUES ($1, $2)"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "133600" || args[1] != "67" {
		t.Fatalf("unexpected args: %+v", args)
	}
}
