package service

import (
	"reflect"
	"testing"
)

func TestPartNumber(t *testing.T) {
	cases := []struct {
		filename string
		expected int
	}{
		{"report_part1.pdf", 1},
		{"report_Part2.pdf", 2},
		{"REPORT_PART10.DOCX", 10},
		{"part3_final.docx", 3},
		{"part7part9.pdf", 7},
		{"report.pdf", 0},
		{"partial.pdf", 0},
		{"party.docx", 0},
		{"/some/dir/chapter_part4.pdf", 4},
	}

	for _, tc := range cases {
		if got := PartNumber(tc.filename); got != tc.expected {
			t.Fatalf("PartNumber(%q) = %d, expected %d", tc.filename, got, tc.expected)
		}
	}
}

func TestSortByPartNumber(t *testing.T) {
	paths := []string{
		"doc_part3.pdf",
		"doc_part1.pdf",
		"doc_part2.pdf",
	}

	sorted := SortByPartNumber(paths)

	expected := []string{"doc_part1.pdf", "doc_part2.pdf", "doc_part3.pdf"}
	if !reflect.DeepEqual(sorted, expected) {
		t.Fatalf("expected %v, got %v", expected, sorted)
	}
}

func TestSortByPartNumber_LexicalTieBreak(t *testing.T) {
	// Equal part keys (all absent) order lexically by base filename,
	// regardless of input order.
	paths := []string{
		"charlie.pdf",
		"alpha.pdf",
		"bravo.pdf",
	}

	sorted := SortByPartNumber(paths)

	expected := []string{"alpha.pdf", "bravo.pdf", "charlie.pdf"}
	if !reflect.DeepEqual(sorted, expected) {
		t.Fatalf("expected %v, got %v", expected, sorted)
	}
}

func TestSortByPartNumber_MixedKeys(t *testing.T) {
	paths := []string{
		"z_part2.pdf",
		"intro.pdf", // no token, sorts as 0
		"a_part2.pdf",
		"doc_part1.pdf",
	}

	sorted := SortByPartNumber(paths)

	expected := []string{"intro.pdf", "doc_part1.pdf", "a_part2.pdf", "z_part2.pdf"}
	if !reflect.DeepEqual(sorted, expected) {
		t.Fatalf("expected %v, got %v", expected, sorted)
	}
}

func TestSortByPartNumber_DoesNotModifyInput(t *testing.T) {
	paths := []string{"b_part2.pdf", "a_part1.pdf"}
	original := []string{"b_part2.pdf", "a_part1.pdf"}

	SortByPartNumber(paths)

	if !reflect.DeepEqual(paths, original) {
		t.Fatalf("input slice was modified: %v", paths)
	}
}
