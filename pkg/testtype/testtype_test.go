package testtype_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elastic/loadreplay/pkg/testtype"
)

func TestFromString(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		want      testtype.TestType
		wantError bool
	}{
		{"empty", "", "", true},
		{"smoke", "smoke", testtype.Smoke, false},
		{"load", "load", testtype.Load, false},
		{"uppercase", "LOAD", "", true},
		{"stress", "stress", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := testtype.FromString(tt.value)
			if tt.wantError {
				require.ErrorIs(t, err, testtype.ErrInvalid)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, v)
		})
	}
}
