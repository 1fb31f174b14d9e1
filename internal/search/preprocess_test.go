package search

import "testing"

func TestFlattenTables_NoTableUnchanged(t *testing.T) {
	in := "Plain notes.\n\nSecond paragraph."
	if got := FlattenTables(in); got != in {
		t.Fatalf("expected unchanged text, got %q", got)
	}
	pipe := "a | b but not a table"
	if got := FlattenTables(pipe); got != pipe {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestFlattenTables_RowsBecomeFacts(t *testing.T) {
	in := "Keywords\n| Keyword | Meaning |\n|:---|---:|\n| go | starts a goroutine |\n| defer |  |\nafter"
	want := "Keywords\nKeyword Meaning\ngo starts a goroutine\ndefer\nafter"
	if got := FlattenTables(in); got != want {
		t.Fatalf("FlattenTables =\n%q\nwant\n%q", got, want)
	}
}
