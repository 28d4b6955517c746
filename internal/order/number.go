package order

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewOrderNumber returns a human-readable order number of the form
// ORD_20250107_a1b2c3. The date prefix makes numbers roughly sortable, the
// random suffix makes them unique; callers must not rely on ordering.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("ORD_%s_%s", now.UTC().Format("20060102"), hex.EncodeToString(buf))
}
