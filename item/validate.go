package item

import "fmt"

// ValidationErrorKind classifies a semantic validation failure (as opposed
// to a wire-format DecodeError).
type ValidationErrorKind int

const (
	KindMissingTimestamp ValidationErrorKind = iota
	KindMissingVariant
	KindBadFollowUserLength
)

// ValidationError reports the first semantic failure found in an
// otherwise well-formed Item. Spec §4.2 requires decoding to surface the
// first failure encountered, not an aggregate.
type ValidationError struct {
	Kind    ValidationErrorKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrf(kind ValidationErrorKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the required invariants on an otherwise-decoded Item
// that proto3's wire format can't itself express:
//
//   - timestamp_ms_utc must be non-zero (zero means "unset").
//   - exactly one of {Post, Profile, Comment} must be present.
//   - every Follow.User in a Profile must be exactly 32 bytes.
//
// Future variant-specific rules can be added here without changing the
// external contract (spec §4.2(c)).
func Validate(it *Item) error {
	if it.TimestampMsUTC == 0 {
		return validationErrf(KindMissingTimestamp, "Item is missing a timestamp")
	}

	variants := 0
	if it.Post != nil {
		variants++
	}
	if it.Profile != nil {
		variants++
	}
	if it.Comment != nil {
		variants++
	}
	if variants != 1 {
		return validationErrf(KindMissingVariant, "Item must have exactly one of Post, Profile, or Comment, found %d", variants)
	}

	if it.Profile != nil {
		for _, f := range it.Profile.Follows {
			if len(f.User) != 32 {
				return validationErrf(
					KindBadFollowUserLength,
					"Follow user ID must be 32 bytes, found %d",
					len(f.User),
				)
			}
		}
	}

	return nil
}
