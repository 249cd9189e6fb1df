package songs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"2:05", 125, false},
		{"3:45", 225, false},
		{" 0:59 ", 59, false},
		{"12:00", 720, false},
		{"0:00", 0, true},
		{"1:60", 0, true},
		{"1:-1", 0, true},
		{"-1:10", 0, true},
		{"125", 0, true},
		{"1:2:3", 0, true},
		{"a:10", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrValidation)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2:05", FormatDuration(125))
	assert.Equal(t, "0:59", FormatDuration(59))
	assert.Equal(t, "10:00", FormatDuration(600))
}
