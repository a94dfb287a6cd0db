// Package gameid generates the identifiers used for rounds and shared game
// records: a UUIDv7 rendered as 26 characters of Crockford base32, so IDs
// are short, URL-safe and sort by creation time.
package gameid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of an encoded ID
const Length = 26

// New creates a new time-ordered ID
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system random source fails.
		panic("failed to generate uuid: " + err.Error())
	}
	return Encode(id)
}

// Encode renders a UUID as a 26-character base32 string
func Encode(id uuid.UUID) string {
	return encodeBase32(id)
}

// encodeBase32 encodes a 128-bit UUID as a 26-character base32 string. The
// 128 bits are read as 130 bits with two leading zero bits.
func encodeBase32(data [16]byte) string {
	result := make([]byte, Length)
	for i := range Length {
		// bit offset into the 130-bit value; the first two bits are zero
		bitOffset := i*5 - 2
		var value uint8
		for b := range 5 {
			bit := bitOffset + b
			if bit < 0 {
				continue
			}
			if data[bit/8]&(0x80>>(bit%8)) != 0 {
				value |= 1 << (4 - b)
			}
		}
		result[i] = alphabet[value]
	}
	return string(result)
}

// Decode parses an encoded ID back into a UUID
func Decode(s string) (uuid.UUID, error) {
	if err := Validate(s); err != nil {
		return uuid.UUID{}, err
	}
	var out uuid.UUID
	for i := range Length {
		value := strings.IndexByte(alphabet, s[i])
		for b := range 5 {
			bit := i*5 - 2 + b
			if bit < 0 || value&(1<<(4-b)) == 0 {
				continue
			}
			out[bit/8] |= 0x80 >> (bit % 8)
		}
	}
	return out, nil
}

// Validate checks if an ID is valid (26 characters, valid base32)
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("game ID must be exactly %d characters, got %d", Length, len(id))
	}

	// The first character carries only three bits.
	if id[0] > '7' {
		return fmt.Errorf("game ID first character must be 0-7, got %c", id[0])
	}

	for i := range len(id) {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
