package utils

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("segreto123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "segreto123" {
		t.Fatal("hash must not equal the plain password")
	}
	if err := CheckPassword("segreto123", hash); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := CheckPassword("sbagliata", hash); err == nil {
		t.Fatal("expected mismatch error for wrong password")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, role := range []string{"admin", "teacher"} {
		if !IsValidRole(role) {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	for _, role := range []string{"owner", "student", "", "Admin"} {
		if IsValidRole(role) {
			t.Fatalf("expected %q to be invalid", role)
		}
	}
}

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"csv", "xlsx"}

	tests := []struct {
		filename string
		exp      bool
	}{
		{"registro.csv", true},
		{"registro.CSV", true},
		{"tesoretto.xlsx", true},
		{"note.txt", false},
		{"senza_estensione", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsValidFileExtension(tc.filename, allowed); got != tc.exp {
			t.Fatalf("IsValidFileExtension(%q) = %v, expected %v", tc.filename, got, tc.exp)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  3A \x00 "); got != "3A" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}
