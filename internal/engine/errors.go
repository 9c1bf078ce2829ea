package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind int

const (
	// KindIO covers file system and remote slot failures.
	KindIO Kind = iota + 1
	// KindDecode covers malformed frames and unparsable documents.
	KindDecode
	// KindEncode covers documents that cannot be serialized or framed.
	KindEncode
	// KindValidation covers failed required validation rules.
	KindValidation
	// KindMigration covers failed required migration rules.
	KindMigration
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	case KindValidation:
		return "validation"
	case KindMigration:
		return "migration"
	default:
		return "unknown"
	}
}

// Error is returned by every public engine operation.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s failure: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrNoMirror is returned by cloud operations when no remote slot is configured.
	ErrNoMirror = errors.New("cloud mirror not configured")

	// ErrValidationFailed is wrapped when required validations fail.
	ErrValidationFailed = errors.New("document failed validation")

	// ErrMigrationFailed is wrapped when a required migration step fails.
	ErrMigrationFailed = errors.New("document migration failed")
)

// KindOf returns the kind of an engine error, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsIOFailure checks if an error is an I/O failure
func IsIOFailure(err error) bool { return KindOf(err) == KindIO }

// IsDecodeFailure checks if an error is a decode failure
func IsDecodeFailure(err error) bool { return KindOf(err) == KindDecode }

// IsEncodeFailure checks if an error is an encode failure
func IsEncodeFailure(err error) bool { return KindOf(err) == KindEncode }

// IsValidationFailure checks if an error is a validation failure
func IsValidationFailure(err error) bool { return KindOf(err) == KindValidation }

// IsMigrationFailure checks if an error is a migration failure
func IsMigrationFailure(err error) bool { return KindOf(err) == KindMigration }
