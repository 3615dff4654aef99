package validation

import "testing"

func TestIsValidPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{
			name:  "ten digits",
			phone: "0612345678",
			valid: true,
		},
		{
			name:  "with spaces",
			phone: "06 12 34 56 78",
			valid: true,
		},
		{
			name:  "with dots",
			phone: "06.12.34.56.78",
			valid: true,
		},
		{
			name:  "international prefix",
			phone: "+33612345678",
			valid: true,
		},
		{
			name:  "too short",
			phone: "061234567",
			valid: false,
		},
		{
			name:  "no leading zero",
			phone: "6123456789",
			valid: false,
		},
		{
			name:  "second digit zero",
			phone: "0012345678",
			valid: false,
		},
		{
			name:  "contains letters",
			phone: "06a2345678",
			valid: false,
		},
		{
			name:  "empty string",
			phone: "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidPhoneNumber(tt.phone)
			if got != tt.valid {
				t.Fatalf("IsValidPhoneNumber(%q) = %v, want %v", tt.phone, got, tt.valid)
			}
		})
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	if got := NormalizePhoneNumber("+33 6 12 34 56 78"); got != "0612345678" {
		t.Fatalf("NormalizePhoneNumber = %q, want 0612345678", got)
	}
	if got := NormalizePhoneNumber("06.12.34.56.78"); got != "0612345678" {
		t.Fatalf("NormalizePhoneNumber = %q, want 0612345678", got)
	}
	if got := NormalizePhoneNumber("invalid"); got != "" {
		t.Fatalf("NormalizePhoneNumber = %q, want empty", got)
	}
}
