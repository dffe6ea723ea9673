package sink

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		transient    bool
		unconfigured bool
		malformed    bool
	}{
		{
			name:      "wrapped transient",
			err:       Transientf("endpoint returned status %d", 503),
			transient: true,
		},
		{
			name:         "wrapped unconfigured",
			err:          Unconfiguredf("missing token"),
			unconfigured: true,
		},
		{
			name:      "wrapped malformed",
			err:       Malformedf("bad payload for %s", "cs_123"),
			malformed: true,
		},
		{
			name:      "double wrapped transient survives",
			err:       fmt.Errorf("sweep: %w", Transientf("network down")),
			transient: true,
		},
		{
			name: "plain error matches nothing",
			err:  errors.New("unclassified"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.unconfigured, IsUnconfigured(tt.err))
			assert.Equal(t, tt.malformed, IsMalformed(tt.err))
		})
	}
}

func TestErrorClassesAreDisjoint(t *testing.T) {
	err := Transientf("attribution webhook returned status %d", 500)
	assert.True(t, IsTransient(err))
	assert.False(t, IsUnconfigured(err))
	assert.False(t, IsMalformed(err))
}
