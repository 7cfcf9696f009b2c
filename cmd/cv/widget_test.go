package main

import "testing"

func TestParsePair(t *testing.T) {
	tests := []struct {
		in      string
		sep     string
		x, y    int
		wantErr bool
	}{
		{"3,2", ",", 3, 2, false},
		{" 0 , 7 ", ",", 0, 7, false},
		{"4x3", "x", 4, 3, false},
		{"4", "x", 0, 0, true},
		{"a,1", ",", 0, 0, true},
		{"1,b", ",", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			x, y, err := parsePair(tt.in, tt.sep)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePair(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && (x != tt.x || y != tt.y) {
				t.Errorf("parsePair(%q) = %d,%d, want %d,%d", tt.in, x, y, tt.x, tt.y)
			}
		})
	}
}
