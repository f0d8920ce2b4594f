package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gel-controller/internal/device"
)

func TestMatchChannel(t *testing.T) {
	channels := []device.Channel{
		{Key: 1, Name: "Battery Level"},
		{Key: 7, Name: "Real-Time Heart Rate"},
		{Key: 9, Name: "Step Count"},
	}

	tests := []struct {
		name    string
		label   string
		wantKey int
		found   bool
	}{
		{"case-insensitive substring", "heart rate", 7, true},
		{"upper case label", "HEART RATE", 7, true},
		{"exact channel name", "Battery Level", 1, true},
		{"no match", "temperature", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, ok := MatchChannel(channels, tt.label)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.wantKey, ch.Key)
			}
		})
	}
}

func TestMatchChannelFirstWins(t *testing.T) {
	channels := []device.Channel{
		{Key: 3, Name: "heart rate raw"},
		{Key: 7, Name: "Heart Rate Smoothed"},
	}
	ch, ok := MatchChannel(channels, HeartbeatLabel)
	assert.True(t, ok)
	assert.Equal(t, 3, ch.Key)
}

func TestMatchChannelEmptyList(t *testing.T) {
	_, ok := MatchChannel(nil, HeartbeatLabel)
	assert.False(t, ok)
}
