package util

import "testing"

func TestCollapseWhitespace(t *testing.T) {
	if CollapseWhitespace(nil) != nil {
		t.Fatal("nil input must stay nil")
	}

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "newlines and tabs", input: "  Computer\n\tScience  ", want: "Computer Science"},
		{name: "already clean", input: "MIT", want: "MIT"},
		{name: "only spaces", input: " \n ", want: ""},
		{name: "repeated spaces", input: "Data    Science", want: "Data Science"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CollapseWhitespace(&tc.input)
			if got == nil || *got != tc.want {
				t.Fatalf("got %v want %q", got, tc.want)
			}
		})
	}
}

func TestTruncateProgramCell(t *testing.T) {
	if TruncateProgramCell(nil) != nil {
		t.Fatal("nil input must stay nil")
	}

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "decision and term", input: "Computer Science Accepted Fall 2026", want: "Computer Science"},
		{name: "term only", input: "Physics  PhD Fall 2025", want: "Physics PhD"},
		{name: "term needs trailing space", input: "Biology Fall", want: "Biology Fall"},
		{name: "nationality", input: "Economics International", want: "Economics"},
		{name: "score label", input: "Math GRE 320", want: "Math"},
		{name: "priority over position", input: "History GPA 3.9 Rejected", want: "History GPA 3.9"},
		{name: "no marker", input: "Chemical Engineering", want: "Chemical Engineering"},
		{name: "multiline", input: "Statistics\n\n Wait listed", want: "Statistics"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateProgramCell(&tc.input)
			if got == nil || *got != tc.want {
				t.Fatalf("got %v want %q", got, tc.want)
			}
		})
	}
}

func TestTruncateProgramCellIdempotent(t *testing.T) {
	inputs := []string{
		"Computer Science Accepted Fall 2026",
		"Economics International",
		"Chemical Engineering",
		"  Mechanical\tEngineering Spring 2025 ",
		"",
	}
	for _, in := range inputs {
		once := TruncateProgramCell(&in)
		twice := TruncateProgramCell(once)
		if *once != *twice {
			t.Fatalf("%q: once=%q twice=%q", in, *once, *twice)
		}
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"accepted":    "Accepted",
		"REJECTED":    "Rejected",
		"wait listed": "Wait Listed",
		"autumn":      "Autumn",
	}
	for in, want := range cases {
		if got := TitleCase(in); got != want {
			t.Fatalf("TitleCase(%q)=%q want %q", in, got, want)
		}
	}
}
