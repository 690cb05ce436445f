package datastream

// Buffer addresses travel as two bytes. In 12-bit mode each byte carries six bits of the
// address, translated through addressCodes so that the byte is always a printable EBCDIC
// character. In 14-bit mode the top two bits of the first byte are zero and the remaining
// fourteen bits are the address in binary.
var addressCodes = [64]byte{
	0x40, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, 0xC8, 0xC9, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F,
	0x50, 0xD1, 0xD2, 0xD3, 0xD4, 0xD5, 0xD6, 0xD7, 0xD8, 0xD9, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F,
	0x60, 0x61, 0xE2, 0xE3, 0xE4, 0xE5, 0xE6, 0xE7, 0xE8, 0xE9, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F,
	0xF0, 0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6, 0xF7, 0xF8, 0xF9, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F,
}

// max12BitAddress is the size of the largest buffer 12-bit addressing can reach
const max12BitAddress = 4096

// DecodeAddress unpacks a two-byte buffer address in either addressing mode
func DecodeAddress(b1, b2 byte) int {
	if b1&0xC0 == 0 {
		return int(b1&0x3F)<<8 | int(b2)
	}

	return int(b1&0x3F)<<6 | int(b2&0x3F)
}

// EncodeAddress packs a buffer address, using 12-bit mode whenever the buffer is small
// enough for it
func EncodeAddress(address int, screenSize int) [2]byte {
	if screenSize > max12BitAddress {
		return [2]byte{byte(address>>8) & 0x3F, byte(address)}
	}

	return [2]byte{addressCodes[(address>>6)&0x3F], addressCodes[address&0x3F]}
}

// EncodeAttribute translates a field attribute into the printable form used when the
// terminal sends attributes to the host
func EncodeAttribute(a FieldAttribute) byte {
	return addressCodes[byte(a)&attributeSignificant]
}
