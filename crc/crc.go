// Package crc implements CRC-8 with polynomial 0x93 used to check
// frames exchanged with the I/O bus bridge.
package crc

const CRC_POLY_93 byte = 0x93

var table93 [256]byte

func init() {
	for i := 0; i < 256; i++ {
		table93[i] = CRC8_p93_reference(0, byte(i))
	}
}

// Bitwise version, used to build lookup table and in tests.
func CRC8_p93_reference(crc, data byte) byte {
	crc ^= data
	for i := 0; i < 8; i++ {
		if (crc & 0x80) != 0 {
			crc <<= 1
			crc ^= CRC_POLY_93
		} else {
			crc <<= 1
		}
	}
	return crc
}

func CRC8_p93_next(crc, data byte) byte { return table93[crc^data] }

func CRC8_p93_2(b1, b2 byte) byte {
	return CRC8_p93_next(CRC8_p93_next(0, b1), b2)
}

func CRC8_p93_n(crc byte, bs []byte) byte {
	for _, b := range bs {
		crc = table93[crc^b]
	}
	return crc
}
