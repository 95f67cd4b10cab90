package rule

import (
	"strings"
	"testing"
)

func testRules() []Rule {
	return []Rule{
		{Index: 1, Rows: ColumnSlice{Start: 1, End: 5, Stride: 1}, Column: ColumnSlice{Full: true}, Tolerance: Tolerance{Abs: true}},
		{Index: 2, Rows: ColumnSlice{Start: 5, End: 10, Stride: 1}, Column: ColumnSlice{Start: 2, End: 3, Stride: 1}, Tolerance: Tolerance{Rel: true}},
		{Index: 3, Rows: ColumnSlice{Full: true}, Column: ColumnSlice{Full: true}},
	}
}

func TestSetIncrementalRetiresExpiredRules(t *testing.T) {
	s := NewSet(testRules())

	r, ok := s.GetIncremental(1, 0)
	if !ok || r.Index != 1 {
		t.Fatalf("row 1 should resolve rule 1, got %+v ok=%v", r, ok)
	}

	// Past rule 1's row window; rule 2 only covers column 2, so a
	// row-level (col 0) query still answers with it.
	r, ok = s.GetIncremental(6, 0)
	if !ok || r.Index != 2 {
		t.Fatalf("row 6 col 0 should resolve rule 2, got %+v ok=%v", r, ok)
	}
	r, ok = s.GetIncremental(6, 1)
	if !ok || r.Index != 3 {
		t.Fatalf("row 6 col 1 should fall through to the catch-all rule 3, got %+v ok=%v", r, ok)
	}
	r, ok = s.GetIncremental(6, 2)
	if !ok || r.Index != 2 {
		t.Fatalf("row 6 col 2 should resolve rule 2, got %+v ok=%v", r, ok)
	}

	// Beyond every windowed rule only the catch-all remains.
	r, ok = s.GetIncremental(100, 3)
	if !ok || r.Index != 3 {
		t.Fatalf("row 100 should resolve the catch-all, got %+v ok=%v", r, ok)
	}
}

func TestSetGetAtAgreesWithoutAdvancing(t *testing.T) {
	s := NewSet(testRules())
	inc, okInc := s.GetIncremental(6, 2)
	at, okAt := s.GetAt(6, 2)
	if okInc != okAt || inc.Index != at.Index {
		t.Errorf("GetAt disagrees with GetIncremental: %+v vs %+v", inc, at)
	}
	// GetAt on the same row must not have moved the incremental cursor:
	// a repeat incremental lookup still resolves the same rule.
	if r, ok := s.GetIncremental(6, 2); !ok || r.Index != inc.Index {
		t.Errorf("cursor moved by GetAt: %+v ok=%v", r, ok)
	}
}

func TestSetGetAtIsRandomAccess(t *testing.T) {
	s := NewSet(testRules())
	// Advance the incremental cursor past rule 1's row window.
	if r, ok := s.GetIncremental(6, 0); !ok || r.Index != 2 {
		t.Fatalf("setup lookup failed: %+v ok=%v", r, ok)
	}
	// The incremental iterator cannot rewind to an earlier row, but
	// GetAt must still resolve it from the full list.
	if r, ok := s.GetAt(2, 1); !ok || r.Index != 1 {
		t.Errorf("GetAt(2, 1) should find the retired rule 1, got %+v ok=%v", r, ok)
	}
	if r, ok := s.GetIncremental(2, 1); !ok || r.Index != 3 {
		t.Errorf("incremental lookup after advance should give rule 3, got %+v ok=%v", r, ok)
	}
}

func TestSetOnFailHook(t *testing.T) {
	s := NewSet(testRules())
	var fired []int
	s.SetOnFail(func(r Rule) { fired = append(fired, r.Index) })
	s.OnFail(Rule{Index: 2})
	s.OnFail(Rule{Index: 3})
	if s.Failures() != 2 || len(fired) != 2 || fired[0] != 2 || fired[1] != 3 {
		t.Errorf("OnFail bookkeeping wrong: failures=%d fired=%v", s.Failures(), fired)
	}
}

func TestSetFindIndexAndLine(t *testing.T) {
	rules := testRules()
	rules[1].Source = `col = "2" cmd = "rel"`
	s := NewSet(rules)
	if r, ok := s.FindIndex(2); !ok || r.Index != 2 {
		t.Errorf("FindIndex(2) = %+v, %v", r, ok)
	}
	if _, ok := s.FindIndex(99); ok {
		t.Error("FindIndex must report a missing index")
	}
	if r, ok := s.FindLine(`cmd = "rel"`); !ok || r.Index != 2 {
		t.Errorf("FindLine = %+v, %v", r, ok)
	}
}

func TestSetPrintListsEveryRule(t *testing.T) {
	s := NewSet(testRules())
	out := s.Print()
	if out == "" {
		t.Fatal("Print returned nothing")
	}
	for _, want := range []string{"rule#1", "rule#2", "rule#3"} {
		if !strings.Contains(out, want) {
			t.Errorf("Print output missing %s", want)
		}
	}
}
