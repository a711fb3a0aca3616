package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerboseRequested(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"no args", nil, false},
		{"short flag", []string{"query", "-v", "revenue"}, true},
		{"long flag", []string{"--verbose", "ingest", "a.csv"}, true},
		{"after terminator", []string{"query", "--", "-v"}, false},
		{"other flags", []string{"query", "-k", "5"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verboseRequested(tt.args))
		})
	}
}
