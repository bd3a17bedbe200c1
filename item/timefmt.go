package item

import "time"

// FormatWithOffset renders a UTC millisecond timestamp shifted by the
// given offset (minutes, informational only — spec §9 notes the server
// never uses it for ordering) into a human-readable local time string.
// Nothing in this module calls it: neither `db usage` nor `user list`
// prints timestamps, and the HTTP API does not use it.
func FormatWithOffset(timestampMsUTC int64, offsetMinutes int32) string {
	t := time.UnixMilli(timestampMsUTC).UTC()
	loc := time.FixedZone("", int(offsetMinutes)*60)
	return t.In(loc).Format("2006-01-02 15:04:05 -0700")
}
