package refdata

import "time"

// SetClock replaces the clock used for entry expiry.
func SetClock(c *Cache, now func() time.Time) { c.now = now }
