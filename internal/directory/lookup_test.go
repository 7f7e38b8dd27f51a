package directory

import (
	"context"
	"sort"
	"testing"
)

// sortedNames は集合の要素を昇順で返す。
func sortedNames(s LookupSet) []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func TestNewLookupSet_DeduplicatesAndSkipsEmpty(t *testing.T) {
	set := NewLookupSet("alice", "bob", "alice", "")

	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
	if !set.Contains("alice") || !set.Contains("bob") {
		t.Error("登録した名前が含まれていない")
	}
	if set.Contains("") {
		t.Error("空文字列は登録されてはならない")
	}
}

func TestLookupSet_ExactMatchOnly(t *testing.T) {
	set := NewLookupSet("tu_id_1")

	if set.Contains("TU_ID_1") {
		t.Error("大文字小文字が異なる名前は一致してはならない")
	}
	if set.Contains(" tu_id_1") {
		t.Error("空白を含む名前は一致してはならない")
	}
}

func TestLookupSet_ZeroValueIsEmpty(t *testing.T) {
	var set LookupSet

	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", set.Len())
	}
	if set.Contains("anyone") {
		t.Error("ゼロ値の集合は何も含まない")
	}
	if got := sortedNames(set); len(got) != 0 {
		t.Errorf("names = %v, want empty", got)
	}
}

func TestStaticSource_ReturnsInjectedSet(t *testing.T) {
	src := StaticSource{Set: NewLookupSet("to_reactivate")}

	set, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() がエラーを返した: %v", err)
	}
	if !set.Contains("to_reactivate") {
		t.Error("注入した集合が返されていない")
	}
}
