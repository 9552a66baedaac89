package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRCUpdateResetIsZero(t *testing.T) {
	// The receiver resets the register and folds in the dominant SOF bit
	// in one step; that leaves the register at zero.
	crc := crcUpdate(0, 0)
	assert.Equal(t, uint16(0), crc)
}

func TestCRCUpdateAllZeroBitsStaysZero(t *testing.T) {
	// A run of zero bits never sets the CRC register's top bit, so no XOR
	// with the polynomial ever triggers: the accumulator stays all-zero.
	var crc uint16
	for i := 0; i < 64; i++ {
		crc = crcUpdate(crc, 0)
	}
	assert.Equal(t, uint16(0), crc)
}

func TestCRCUpdateMasksTo15Bits(t *testing.T) {
	var crc uint16 = 0x7FFF
	for i := 0; i < 16; i++ {
		crc = crcUpdate(crc, 1)
		assert.LessOrEqual(t, crc, uint16(0x7FFF), "CRC register must stay within 15 bits")
	}
}

func TestCRCUpdateIsDeterministic(t *testing.T) {
	bits := []int{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 0, 0, 0, 1, 1, 0, 1, 0, 0, 1, 1}

	var crcA uint16
	for _, b := range bits {
		crcA = crcUpdate(crcA, b)
	}

	var crcB uint16
	for _, b := range bits {
		crcB = crcUpdate(crcB, b)
	}

	assert.Equal(t, crcA, crcB)
}
