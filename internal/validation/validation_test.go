package validation

import (
	"testing"
)

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"trf_9f2c41aa03b8e7d14c55", true},
		{"blk_0011223344556677", true},
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"tkt_1", true},

		// Invalid cases
		{"", false},
		{"has spaces", false},
		{"semi;colon", false},
		{"path/../traversal", false},
		{string(make([]byte, MaxIDLength+1)), false}, // too long (and zero bytes)
	}

	for _, tc := range tests {
		result := IsValidID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestIsValidJurisdiction(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"US-CT", true},
		{"UK", true},
		{"FR", true},
		{"DEFAULT", true},
		{"us-ny", true},

		// Invalid
		{"", false},
		{"U", false},
		{"US-", false},
		{"US-CONNECTICUT", false},
		{"US CT", false},
	}

	for _, tc := range tests {
		result := IsValidJurisdiction(tc.code)
		if result != tc.valid {
			t.Errorf("IsValidJurisdiction(%q) = %v, want %v", tc.code, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("ticketId", "tkt_1"),
		ValidID("sellerId", "usr_abc123"),
		PositiveAmount("price", 120),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("ticketId", ""),
		ValidID("sellerId", "not valid!"),
		PositiveAmount("price", -1),
	)
	if len(errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(errors))
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
