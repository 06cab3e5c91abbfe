package persistence

import "time"

// Record times keep microseconds, matching the live view clock.
func timeToUnixMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func unixMicrosToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMicro(v)
}
