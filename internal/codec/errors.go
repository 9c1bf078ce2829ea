// Package codec implements the reversible text stages of the save
// pipeline: deflate-family compression, AES-CBC encryption and the
// textual framing tags that mark which stages produced a payload.
package codec

import "errors"

var (
	// ErrInvalidKeyLength is returned when a key is not 16, 24 or 32 bytes long.
	ErrInvalidKeyLength = errors.New("codec: key must be 16, 24 or 32 bytes")

	// ErrMalformedFrame is returned when a tagged payload cannot be unwrapped.
	ErrMalformedFrame = errors.New("codec: malformed frame")

	// ErrCiphertext is returned when ciphertext has a bad length or padding.
	ErrCiphertext = errors.New("codec: invalid ciphertext")

	// ErrEncryptionDisabled is returned when an encrypted payload is read
	// by a session that has no usable key.
	ErrEncryptionDisabled = errors.New("codec: encryption disabled for this session")

	// ErrPayloadTooLarge is returned when a payload inflates beyond MaxInflatedSize.
	ErrPayloadTooLarge = errors.New("codec: inflated payload too large")
)
