package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Frame tags. Stages are applied outer to inner on write:
// ENC_ (or ENC2_) wraps COMP_, which wraps the document text.
const (
	TagEncrypted   = "ENC_"
	TagEncryptedIV = "ENC2_"
	TagCompressed  = "COMP_"
)

// Tags returns the frame tags found on payload, outermost first. Only
// the encryption tag is visible without a key; layers beneath an
// encryption tag are not inspected.
func Tags(payload string) []string {
	var tags []string
	switch {
	case strings.HasPrefix(payload, TagEncryptedIV):
		return append(tags, TagEncryptedIV)
	case strings.HasPrefix(payload, TagEncrypted):
		return append(tags, TagEncrypted)
	case strings.HasPrefix(payload, TagCompressed):
		return append(tags, TagCompressed)
	}
	return tags
}

func wrap(tag string, body []byte) string {
	return tag + base64.StdEncoding.EncodeToString(body)
}

func unwrap(tag, payload string) ([]byte, error) {
	body, ok := strings.CutPrefix(payload, tag)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s tag", ErrMalformedFrame, tag)
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrMalformedFrame, tag, err)
	}
	return raw, nil
}
