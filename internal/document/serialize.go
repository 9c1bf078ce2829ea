package document

import (
	"fmt"
	"strings"
)

// Serialize writes n in compact form. Every leaf is written quoted.
func Serialize(n *Node) (string, error) {
	if n == nil {
		return "", fmt.Errorf("document: serialize nil node")
	}
	var b strings.Builder
	if err := write(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MustSerialize is Serialize for trees known to be representable.
func MustSerialize(n *Node) string {
	s, err := Serialize(n)
	if err != nil {
		panic(err)
	}
	return s
}

func write(b *strings.Builder, n *Node) error {
	switch n.kind {
	case KindObject:
		b.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeQuoted(b, k); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := write(b, n.fields[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case KindArray:
		b.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := write(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		return writeQuoted(b, n.str)
	}
	return nil
}

func writeQuoted(b *strings.Builder, s string) error {
	if strings.IndexByte(s, '"') >= 0 {
		return fmt.Errorf("%w: %q", ErrUnrepresentable, s)
	}
	b.WriteByte('"')
	b.WriteString(s)
	b.WriteByte('"')
	return nil
}
