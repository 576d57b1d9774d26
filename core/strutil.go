package core

// Number formatting for debug lines. fmt is too large for the targets.

// Utoa formats n in decimal.
func Utoa(n uint32) string {
	return formatUint(uint64(n))
}

// Itoa formats n in decimal.
func Itoa(n int) string {
	if n < 0 {
		// -(n+1) cannot overflow
		return "-" + formatUint(uint64(-(n+1))+1)
	}
	return formatUint(uint64(n))
}

func formatUint(n uint64) string {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = '0' + byte(n%10)
		n /= 10
		if n == 0 {
			return string(buf[i:])
		}
	}
}

// Hex8 formats b as 0x followed by two lowercase digits, the way card
// status bytes are logged.
func Hex8(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{'0', 'x', digits[b>>4], digits[b&0xF]})
}
