package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// zeroIV is the initialization vector of the ENC_ format. Every save
// under the same key reuses it, so equal plaintext prefixes produce equal
// ciphertext prefixes. ENC2_ carries a random IV instead.
var zeroIV = make([]byte, aes.BlockSize)

// EncryptCBC encrypts plaintext with AES-CBC and PKCS#7 padding.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("codec: iv must be %d bytes", aes.BlockSize)
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptCBC reverses EncryptCBC.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("codec: iv must be %d bytes", aes.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrCiphertext, len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out, aes.BlockSize)
}

// sealRandomIV encrypts with a fresh IV and prepends it to the ciphertext.
func sealRandomIV(key, plaintext []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("codec: read iv: %w", err)
	}
	ct, err := EncryptCBC(key, iv, plaintext)
	if err != nil {
		return nil, err
	}
	return append(iv, ct...), nil
}

func openRandomIV(key, sealed []byte) ([]byte, error) {
	if len(sealed) < 2*aes.BlockSize {
		return nil, fmt.Errorf("%w: sealed payload too short", ErrCiphertext)
	}
	return DecryptCBC(key, sealed[:aes.BlockSize], sealed[aes.BlockSize:])
}

func newBlock(key []byte) (cipher.Block, error) {
	if !ValidKeyLength(len(key)) {
		return nil, ErrInvalidKeyLength
	}
	return aes.NewCipher(key)
}

// ValidKeyLength reports whether n selects AES-128, AES-192 or AES-256.
func ValidKeyLength(n int) bool {
	return n == 16 || n == 24 || n == 32
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrCiphertext)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrCiphertext)
		}
	}
	return data[:len(data)-n], nil
}
