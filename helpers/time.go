package helpers

import "time"

// IntMillisecondDefault converts config integer to duration, zero means default.
func IntMillisecondDefault(x int, def time.Duration) time.Duration {
	if x == 0 {
		return def
	}
	return time.Duration(x) * time.Millisecond
}
