package query

import "testing"

func TestNormalizeStripsCommentsAndWhitespace(t *testing.T) {
	sql := "SELECT  *  -- trailing comment\nFROM t /* block\ncomment */ WHERE id = 1"
	got, err := normalize(sql)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := "SELECT * FROM t WHERE id = 1"
	if got != want {
		t.Errorf("normalize() = %q, want %q", got, want)
	}
}

func TestNormalizePreservesQuotedWhitespace(t *testing.T) {
	sql := "SELECT 'a   b' FROM t"
	got, err := normalize(sql)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if got != sql {
		t.Errorf("normalize() = %q, want unchanged %q", got, sql)
	}
}

func TestNormalizeUnterminatedQuoteFails(t *testing.T) {
	_, err := normalize("SELECT 'unterminated FROM t")
	if err == nil {
		t.Fatal("expected ParseError for unterminated quote")
	}
}

func TestClassifyIsStableUnderNormalization(t *testing.T) {
	p := NewParser()
	a1, err := p.Analyze("select * from t")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	a2, err := p.Analyze("  SELECT   *   FROM   t  ")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a1.Classification != a2.Classification {
		t.Errorf("classification differs under normalization: %v vs %v", a1.Classification, a2.Classification)
	}
}

func TestEmptyQueryFails(t *testing.T) {
	p := NewParser()
	if _, err := p.Analyze("   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestClassifyMapsKeywords(t *testing.T) {
	cases := map[string]Classification{
		"SELECT * FROM t":             ClassSelect,
		"INSERT INTO t VALUES (1)":    ClassInsert,
		"UPDATE t SET a=1":            ClassUpdate,
		"DELETE FROM t":               ClassDelete,
		"CREATE TABLE t(id INTEGER)":  ClassSchemaChange,
		"ALTER TABLE t ADD COLUMN a":  ClassSchemaChange,
		"DROP TABLE t":                ClassSchemaChange,
		"PRAGMA table_info(t)":        ClassOther,
	}
	p := NewParser()
	for sql, want := range cases {
		a, err := p.Analyze(sql)
		if err != nil {
			t.Fatalf("Analyze(%q) failed: %v", sql, err)
		}
		if a.Classification != want {
			t.Errorf("Analyze(%q).Classification = %v, want %v", sql, a.Classification, want)
		}
	}
}

func TestAnalyticalFlag(t *testing.T) {
	p := NewParser()
	a, err := p.Analyze("SELECT date, SUM(amount) FROM sales GROUP BY date ORDER BY date")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !a.Analytical {
		t.Error("expected analytical=true")
	}
	if a.Classification != ClassSelect {
		t.Errorf("expected ClassSelect, got %v", a.Classification)
	}

	a2, err := p.Analyze("SELECT * FROM t WHERE id = 1")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a2.Analytical {
		t.Error("expected analytical=false for plain select")
	}
}

func TestAnalyticalFlagStableUnderCommentInsertion(t *testing.T) {
	p := NewParser()
	a1, _ := p.Analyze("SELECT * FROM t GROUP BY id")
	a2, _ := p.Analyze("SELECT * -- comment\nFROM t GROUP BY id")
	if a1.Analytical != a2.Analytical {
		t.Error("analytical flag should be stable under comment insertion")
	}
}

func TestExtractTablesFromJoin(t *testing.T) {
	p := NewParser()
	a, err := p.Analyze("SELECT u.id, u.name, o.total FROM users u JOIN orders o ON u.id=o.user_id")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	want := map[string]bool{"users": true, "orders": true}
	if len(a.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %v", a.Tables)
	}
	for _, tb := range a.Tables {
		if !want[tb] {
			t.Errorf("unexpected table %q in %v", tb, a.Tables)
		}
	}
}

func TestExtractTablesDeduplicates(t *testing.T) {
	p := NewParser()
	a, err := p.Analyze("SELECT * FROM t, t WHERE 1=1")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(a.Tables) != 1 {
		t.Errorf("expected deduplicated single table, got %v", a.Tables)
	}
}

func TestCostEstimate(t *testing.T) {
	p := NewParser()
	a, err := p.Analyze("SELECT * FROM a JOIN b ON a.id=b.id GROUP BY a.id HAVING COUNT(*) > 1 ORDER BY a.id")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	want := 100 + 1000 + 500 + 300 + 200
	if a.Cost != want {
		t.Errorf("Cost = %d, want %d", a.Cost, want)
	}
}

func TestParserCachesByRawText(t *testing.T) {
	p := NewParser()
	sql := "SELECT * FROM t"
	a1, _ := p.Analyze(sql)
	if _, ok := p.cache[sql]; !ok {
		t.Fatal("expected cache entry for raw text")
	}
	a2, _ := p.Analyze(sql)
	if a1.Classification != a2.Classification || a1.Cost != a2.Cost {
		t.Error("expected identical cached Analysis")
	}
}
