package domain

import "testing"

func TestHashPIN(t *testing.T) {
	// SHA-256("1234"), the seed demo PIN.
	const want = "03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4"
	if got := HashPIN("1234"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if HashPIN("1234") == HashPIN("4321") {
		t.Fatal("distinct PINs produced identical hashes")
	}
}

func TestValidPINFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "four digits", input: "1234", want: true},
		{name: "leading zeros", input: "0007", want: true},
		{name: "too short", input: "123", want: false},
		{name: "too long", input: "12345", want: false},
		{name: "letters", input: "12a4", want: false},
		{name: "empty", input: "", want: false},
		{name: "whitespace padded", input: " 1234", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPINFormat(tt.input); got != tt.want {
				t.Fatalf("expected %t for %q, got %t", tt.want, tt.input, got)
			}
		})
	}
}
