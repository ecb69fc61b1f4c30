// Package snowflake provides time-ordered unique IDs for local entities.
package snowflake

import (
	"math/rand"
	"strconv"
	"time"
)

type ID uint64

// Now returns a new ID for the current time.
func Now() ID {
	return TimeToID(time.Now())
}

// TimeToID converts a time.Time to an ID.
func TimeToID(ts time.Time) ID {
	// 48 bits of milliseconds since the epoch, 16 bits of random.
	return ID(uint64(ts.UnixNano()/int64(time.Millisecond))<<16 | uint64(rand.Intn(1<<16)))
}

// ToTime converts an ID back to the time it was minted.
func (id ID) ToTime() time.Time {
	return time.Unix(0, int64(id>>16)*1e6)
}

// Parse parses the decimal string form of an ID, as it appears in URLs.
func Parse(s string) (ID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	return ID(id), err
}
