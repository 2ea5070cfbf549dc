package bbsfw

// Checksum computes the 8-bit checksum sealing every protocol frame: the
// running byte sum of b, truncated to 8 bits. Overflow wraps silently.
func Checksum(b []byte) byte {
	ck := byte(0)
	for i := 0; i < len(b); i++ {
		ck += b[i]
	}
	return ck
}
