package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"debug.frame.changed", "debug.frame.changed", true},
		{"debug.frame.changed", "debug.frame.*", true},
		{"debug.frame.changed", "debug.*", false},
		{"debug.frame.changed", "debug.**", true},
		{"debug.output.console", "debug.output.*", true},
		{"debug.output", "debug.output.**", true},
		{"debug.output.console", "**", true},
		{"debug.output.console", "*.output.console", true},
		{"debug.output.console", "debug.output.target", false},
		{"debug", "debug.*", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+"~"+string(tt.pattern), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestTopic_IsValid(t *testing.T) {
	assert.True(t, Topic("debug.frame").IsValid())
	assert.False(t, Topic("").IsValid())
	assert.False(t, Topic("debug..frame").IsValid())
	assert.False(t, Topic(".debug").IsValid())
}

func TestTopic_IsWildcard(t *testing.T) {
	assert.True(t, Topic("debug.*").IsWildcard())
	assert.True(t, Topic("debug.**").IsWildcard())
	assert.False(t, Topic("debug.output").IsWildcard())
}
