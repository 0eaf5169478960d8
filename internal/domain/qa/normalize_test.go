package qa

import "testing"

func TestNormalizeQuestion(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{name: "trims whitespace", in: "  Hello World  ", out: "hello world"},
		{name: "removes punctuation", in: "What's the capital, of France?", out: "what s the capital of france"},
		{name: "collapses runs", in: "a   b\t\tc", out: "a b c"},
		{name: "empty", in: "   ", out: ""},
	}

	for _, tc := range cases {
		if got := NormalizeQuestion(tc.in); got != tc.out {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.out, got)
		}
	}
}
