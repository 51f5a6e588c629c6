package schema

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// NewID returns a record id: base-36 milliseconds followed by a random
// base-36 suffix, uppercased.
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(t time.Time) string {
	prefix := strconv.FormatInt(t.UnixMilli(), 36)
	suffix := strconv.FormatUint(rand.Uint64(), 36)
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return strings.ToUpper(prefix + suffix)
}
