package sdcard

// CRC7 calculates the 7-bit command checksum (polynomial x^7 + x^3 + 1).
// The result is unshifted; a command frame carries CRC7<<1 | 1.
func CRC7(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		for i := 0; i < 8; i++ {
			crc <<= 1
			if (b^crc)&0x80 != 0 {
				crc ^= 0x09
			}
			b <<= 1
		}
	}
	return crc & 0x7F
}

// CRC16 calculates the data block checksum (CCITT polynomial 0x1021, zero
// initial value) sent in the 2-byte trailer after every block.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
