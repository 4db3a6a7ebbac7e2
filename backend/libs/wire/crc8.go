package wire

const (
	crcPolynomial = 0x8D
	crcSeed       = 0xFF
)

// Checksum computes the frame CRC-8: seed 0xFF, polynomial 0x8D, MSB first,
// no reflection and no final XOR.
func Checksum(data []byte) byte {
	crc := byte(crcSeed)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
