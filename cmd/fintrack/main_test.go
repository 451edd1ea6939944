package main

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.50", 1250, false},
		{"3", 300, false},
		{"0.07", 7, false},
		{"1.234", 0, true},
		{"0", 0, true},
		{"-4", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2025-06-15")
	if err != nil || d == nil || d.Day() != 15 {
		t.Fatalf("unexpected result %v %v", d, err)
	}
	if d, err := parseDate(""); d != nil || err != nil {
		t.Errorf("expected nil for empty input, got %v %v", d, err)
	}
	if _, err := parseDate("15/06/2025"); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
}
