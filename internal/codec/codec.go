package codec

import (
	"fmt"
	"strings"

	"github.com/neogan74/savekit/internal/logger"
)

// Config selects which stages run on write.
type Config struct {
	Compression      bool
	CompressionLevel int
	Encryption       bool
	Key              []byte
	// RandomIV writes ENC2_ frames with a per-save IV instead of the
	// zero-IV ENC_ frames.
	RandomIV bool
}

// Codec frames document text for storage. Whether encryption is active
// is decided once, in New, and holds for the whole session.
type Codec struct {
	compression bool
	level       int
	keyring     *Keyring
	randomIV    bool
}

// New builds a Codec. An encryption key of the wrong length disables
// encryption for the session instead of failing every save.
func New(cfg Config, log logger.Logger) *Codec {
	if log == nil {
		log = logger.GetDefault()
	}
	c := &Codec{
		compression: cfg.Compression,
		level:       cfg.CompressionLevel,
		randomIV:    cfg.RandomIV,
	}
	if cfg.Encryption {
		ring, err := NewKeyring(cfg.Key)
		if err != nil {
			log.Warn("Encryption disabled for this session",
				logger.Int("key_length", len(cfg.Key)),
				logger.Error(err))
		} else {
			c.keyring = ring
			log.Info("Encryption enabled",
				logger.Int("key_bits", ring.Size()*8),
				logger.Bool("random_iv", cfg.RandomIV))
		}
	}
	return c
}

// CompressionEnabled reports whether Encode compresses.
func (c *Codec) CompressionEnabled() bool { return c.compression }

// EncryptionEnabled reports whether the session holds a valid key.
func (c *Codec) EncryptionEnabled() bool { return c.keyring != nil }

// Encode applies compression then encryption, each behind its tag.
func (c *Codec) Encode(text string) (string, error) {
	payload := text
	if c.compression {
		packed, err := Compress(payload, c.level)
		if err != nil {
			return "", err
		}
		payload = wrap(TagCompressed, packed)
	}
	if c.keyring != nil {
		var framed string
		err := c.keyring.Use(func(key []byte) error {
			if c.randomIV {
				sealed, err := sealRandomIV(key, []byte(payload))
				if err != nil {
					return err
				}
				framed = wrap(TagEncryptedIV, sealed)
				return nil
			}
			ct, err := EncryptCBC(key, zeroIV, []byte(payload))
			if err != nil {
				return err
			}
			framed = wrap(TagEncrypted, ct)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("codec: encrypt: %w", err)
		}
		payload = framed
	}
	return payload, nil
}

// Decode strips tags in reverse order: decryption first, then
// decompression. Untagged text is returned unchanged.
func (c *Codec) Decode(payload string) (string, error) {
	text := payload

	switch {
	case strings.HasPrefix(text, TagEncryptedIV), strings.HasPrefix(text, TagEncrypted):
		if c.keyring == nil {
			return "", ErrEncryptionDisabled
		}
		plain, err := c.decrypt(text)
		if err != nil {
			return "", err
		}
		text = plain
	}

	if strings.HasPrefix(text, TagCompressed) {
		packed, err := unwrap(TagCompressed, text)
		if err != nil {
			return "", err
		}
		inflated, err := Decompress(packed)
		if err != nil {
			return "", err
		}
		text = inflated
	}
	return text, nil
}

func (c *Codec) decrypt(payload string) (string, error) {
	tag := TagEncrypted
	if strings.HasPrefix(payload, TagEncryptedIV) {
		tag = TagEncryptedIV
	}
	raw, err := unwrap(tag, payload)
	if err != nil {
		return "", err
	}
	var plain []byte
	err = c.keyring.Use(func(key []byte) error {
		var derr error
		if tag == TagEncryptedIV {
			plain, derr = openRandomIV(key, raw)
		} else {
			plain, derr = DecryptCBC(key, zeroIV, raw)
		}
		return derr
	})
	if err != nil {
		return "", fmt.Errorf("codec: decrypt: %w", err)
	}
	return string(plain), nil
}

// Close destroys the session key.
func (c *Codec) Close() {
	if c.keyring != nil {
		c.keyring.Destroy()
	}
}
