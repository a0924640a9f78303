package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"
)

// GenerateETag derives a weak validator from a record id and its timestamp.
func GenerateETag(id string, updated time.Time) string {
	h := sha1.New()
	h.Write([]byte(id))
	h.Write([]byte(strconv.FormatInt(updated.UnixNano(), 10)))
	return `W/"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
