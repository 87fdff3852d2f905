package sdhost

// crc7 returns the CRC byte of a command frame: the CRC7 of the first five
// bytes in bits 7..1 and the end bit set.
func crc7(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			crc <<= 1
			if (b^crc)&0x80 != 0 {
				crc ^= 0x09
			}
			b <<= 1
		}
	}
	return crc<<1 | 1
}
