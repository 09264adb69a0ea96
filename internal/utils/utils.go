package utils

import (
	"fmt"
	"hash/crc32"
	"time"
)

// ContentETag derives a quoted CRC32 version token from document bytes. The
// local and in-memory store backends use it where S3 would assign an ETag.
func ContentETag(data []byte) string {
	table := crc32.MakeTable(crc32.IEEE)
	return fmt.Sprintf("\"%08x\"", crc32.Checksum(data, table))
}

// NewSubscriptionID generates an identifier for a stats subscription.
func NewSubscriptionID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
