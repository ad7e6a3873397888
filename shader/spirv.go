package shader

import (
	"encoding/binary"
	"fmt"
)

// SPIR-V module header.
const (
	// MagicNumber is the first word of every SPIR-V module.
	MagicNumber = 0x07230203

	headerWords = 5

	minVersion = 0x00010000
	maxVersion = 0x00010600
)

// BytesToWords converts a little-endian SPIR-V byte stream to words.
// Trailing bytes that do not fill a word are an error.
func BytesToWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of words", ErrInvalidSPIRV, len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}

// WordsToBytes is the inverse of BytesToWords.
func WordsToBytes(words []uint32) []byte {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// Validate checks that words look like a SPIR-V module: magic number,
// a complete header, a known version and a non-zero id bound.
func Validate(words []uint32) error {
	if len(words) < headerWords {
		return fmt.Errorf("%w: %d words, header needs %d", ErrInvalidSPIRV, len(words), headerWords)
	}
	if words[0] != MagicNumber {
		return fmt.Errorf("%w: magic %#08x", ErrInvalidSPIRV, words[0])
	}
	if v := words[1]; v < minVersion || v > maxVersion || v&0xFF0000FF != 0 {
		return fmt.Errorf("%w: version %#08x", ErrInvalidSPIRV, v)
	}
	if words[3] == 0 {
		return fmt.Errorf("%w: zero id bound", ErrInvalidSPIRV)
	}
	return nil
}

// Version returns the major and minor version from a module header.
func Version(words []uint32) (major, minor int) {
	if len(words) < 2 {
		return 0, 0
	}
	return int(words[1]>>16) & 0xFF, int(words[1]>>8) & 0xFF
}
