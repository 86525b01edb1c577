package persistence

import "hash/crc32"

// Checksums use CRC32 (IEEE polynomial): fast, hardware-accelerated on
// modern CPUs, and adequate for detecting accidental storage corruption.
// Not cryptographically secure - do not rely on it for tamper detection.

// CalculateChecksum calculates the CRC32 checksum of data.
func CalculateChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
