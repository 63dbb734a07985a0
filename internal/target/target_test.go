package target

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.linkedin.com/company/acme", "https://www.linkedin.com/company/acme"},
		{"http://example.com", "http://example.com"},
		{"linkedin.com/company/acme", "https://linkedin.com/company/acme"},
		{"//linkedin.com/company/acme", "https://linkedin.com/company/acme"},
		{"  linkedin.com/company/acme  ", "https://linkedin.com/company/acme"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"linkedin.com/company/acme", "https://a", "  b.com "} {
		once, err := Normalize(in)
		if err != nil {
			t.Fatal(err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatal(err)
		}
		if once != twice {
			t.Fatalf("not idempotent: %q vs %q", once, twice)
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := Normalize(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestMergeUnique(t *testing.T) {
	got := MergeUnique(
		[]string{"https://a", " https://b ", ""},
		[]string{"https://b", "https://c", "https://a"},
	)
	want := []string{"https://a", "https://b", "https://c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
