package triage

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercases", "Server DOWN", "server down"},
		{"strips url", "see https://example.com/status for details", "see for details"},
		{"strips mention", "hey <@U12345ABC> can you look?", "hey can you look?"},
		{"strips channel ref", "posted in <#C0999XYZ|general> already", "posted in already"},
		{"strips emoji shortcode", "deploy done :tada: :+1:", "deploy done"},
		{"keeps question and exclamation", "is it down?! really!!", "is it down?! really!!"},
		{"collapses whitespace", "a   b\t\tc\n\nd", "a b c d"},
		{"replaces special chars", "50% of nodes @ rack #3", "50 of nodes rack 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Production is DOWN, URGENT!!! please help asap",
		"check <@U123>: https://x.test/p?a=1 :fire: in <#C1|ops>",
		"plain text already normalized",
		"tabs\tand\nnewlines   everywhere",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
