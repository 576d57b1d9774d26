package protocol

// CRC16 returns the frame checksum: CRC-16/MCRF4XX, reflected polynomial
// 0x8408 with initial value 0xFFFF and no final xor. The card uses its own
// CRC-16/XMODEM for data blocks.
func CRC16(data []byte) uint16 {
	return CRC16Update(0xFFFF, data)
}

// CRC16Update continues a frame checksum over data.
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
