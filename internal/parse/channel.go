package parse

import (
	"strings"

	"gel-controller/internal/device"
)

// HeartbeatLabel is the channel-name fragment identifying the heartbeat
// sensor on a presence-sensing device.
const HeartbeatLabel = "heart rate"

// MatchChannel finds the first channel whose name contains label,
// case-insensitively. Sensor firmware is inconsistent about naming
// ("Real-Time Heart Rate", "heart rate bpm", ...), so substring matching is
// the contract here, not equality.
func MatchChannel(channels []device.Channel, label string) (device.Channel, bool) {
	needle := strings.ToLower(label)
	for _, ch := range channels {
		if strings.Contains(strings.ToLower(ch.Name), needle) {
			return ch, true
		}
	}
	return device.Channel{}, false
}
