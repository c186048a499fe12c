package util

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already normalized",
			input: "show all customers",
			want:  "show all customers",
		},
		{
			name:  "mixed case and padding",
			input: "  Show ALL Customers  ",
			want:  "show all customers",
		},
		{
			name:  "internal whitespace runs",
			input: "how\tmany\n  orders",
			want:  "how many orders",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected normalized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextHash_StableAndDistinct(t *testing.T) {
	a := TextHash("volunteers")
	b := TextHash("volunteers")
	if a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}

	c := TextHash("donors")
	if a == c {
		t.Fatalf("distinct inputs produced the same hash %q", a)
	}
}
