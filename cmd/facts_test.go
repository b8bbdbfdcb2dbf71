package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"83280000", "83,280,000"},
		{"4526700000000", "4,526,700,000,000"},
		{"2.4", "2.40"},
		{"-0.5", "-0.50"},
		{"1,234,567", "1,234,567"}, // already separated
		{"unknown", "unknown"},     // non-numeric passes through
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, displayValue(tt.raw), "raw %q", tt.raw)
	}
}

func TestFmtDate(t *testing.T) {
	assert.Equal(t, "-", fmtDate(nil))

	d := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-12-31", fmtDate(&d))
}
