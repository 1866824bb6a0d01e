package isbn

import "testing"

func TestIsValid10(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"0306406152", true},
		{"0-306-40615-2", true},
		{"097522980X", true},
		{"0-9752298-0-X", true},
		{"097522980x", true},
		{"0306406153", false},
		{"030640615X", false},
		{"030640615", false},
		{"03064061521", false},
		{"03064X6152", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid10(tt.in); got != tt.valid {
			t.Errorf("IsValid10(%q) = %v, want %v", tt.in, got, tt.valid)
		}
	}
}

func TestIsValid13(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"9780306406157", true},
		{"978-0-306-40615-7", true},
		{"9781593279288", true},
		{"9780306406154", false},
		{"978030640615", false},
		{"97803064061577", false},
		{"978030640615X", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid13(tt.in); got != tt.valid {
			t.Errorf("IsValid13(%q) = %v, want %v", tt.in, got, tt.valid)
		}
	}
}

func TestIsValid13Checksum(t *testing.T) {
	// Brute-force the check digit: exactly one of the ten candidates
	// must validate for any prefix.
	prefix := "978030640615"
	validCount := 0
	for d := 0; d <= 9; d++ {
		candidate := prefix + string(rune('0'+d))
		if IsValid13(candidate) {
			validCount++
			if candidate != "9780306406157" {
				t.Errorf("unexpected valid candidate %q", candidate)
			}
		}
	}
	if validCount != 1 {
		t.Errorf("expected exactly 1 valid check digit, got %d", validCount)
	}
}

func TestExtract(t *testing.T) {
	text := `Copyright 2004 Pearson Education.
ISBN 0-306-40615-2 (paperback)
ISBN 978-0-306-40615-7 (ebook)`

	isbn10, isbn13 := Extract(text)
	if isbn10 != "0-306-40615-2" {
		t.Errorf("isbn10 = %q, want %q", isbn10, "0-306-40615-2")
	}
	if isbn13 != "978-0-306-40615-7" {
		t.Errorf("isbn13 = %q, want %q", isbn13, "978-0-306-40615-7")
	}
}

func TestExtractSkipsInvalidCandidates(t *testing.T) {
	// The first sequence fails its checksum and must be passed over.
	text := "ref 0306406153 then 0306406152 end"

	isbn10, isbn13 := Extract(text)
	if isbn10 != "0306406152" {
		t.Errorf("isbn10 = %q, want %q", isbn10, "0306406152")
	}
	if isbn13 != "" {
		t.Errorf("isbn13 = %q, want empty", isbn13)
	}
}

func TestExtractNoMatch(t *testing.T) {
	isbn10, isbn13 := Extract("no identifiers in this text at all")
	if isbn10 != "" || isbn13 != "" {
		t.Errorf("Extract = (%q, %q), want empty pair", isbn10, isbn13)
	}
}

func TestExtractTrailingX(t *testing.T) {
	isbn10, _ := Extract("see 0-9752298-0-X for details")
	if isbn10 != "0-9752298-0-X" {
		t.Errorf("isbn10 = %q, want %q", isbn10, "0-9752298-0-X")
	}
}

func TestFromIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"urn:isbn:9780306406157", ""},
		{"9780306406157", "9780306406157"},
		{"978-0-306-40615-7", "9780306406157"},
		{"097522980x", "097522980X"},
		{"12345", ""},
		{"9780306406154", ""},
	}
	for _, tt := range tests {
		if got := FromIdentifier(tt.in); got != tt.want {
			t.Errorf("FromIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
