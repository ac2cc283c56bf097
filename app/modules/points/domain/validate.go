package pointsdomain

import (
	"fmt"
	"math"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MaxReasonLength bounds honor reasons, counted in characters.
const MaxReasonLength = 1000

// Validate implements validation.Validatable.
func (m Mutation) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Kind, validation.Required, validation.In(MutationKindGroup, MutationKindParticipant)),
		validation.Field(&m.TargetID, validation.Required, validation.Min(int64(1))),
		// points.value is a Postgres INTEGER.
		validation.Field(&m.Value, validation.NotNil, validation.Min(math.MinInt32), validation.Max(math.MaxInt32)),
		validation.Field(&m.EffectiveDate, validation.Date(DateLayout)),
	)
}

func (r HonorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ParticipantID, validation.Required, validation.Min(ParticipantID(1))),
		validation.Field(&r.Date, validation.Required, validation.Date(DateLayout)),
		validation.Field(&r.Reason, validation.RuneLength(0, MaxReasonLength)),
	)
}

func (p HonorPatch) Validate() error {
	if p.Date == nil && p.Reason == nil {
		return NewValidationError("request", "at least one of date or reason is required")
	}
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Date, validation.NilOrNotEmpty, validation.Date(DateLayout)),
		validation.Field(&p.Reason, validation.RuneLength(0, MaxReasonLength)),
	)
	return ValidationFromErr("", err)
}

// ValidateBatch checks list-level bounds and every item, returning a single
// ValidationError keyed by "<name>[i].<field>".
func ValidateBatch[T validation.Validatable](name string, items []T, maxSize int) error {
	if len(items) == 0 {
		return NewValidationError(name, "must contain at least one item")
	}
	if maxSize > 0 && len(items) > maxSize {
		return NewValidationError(name, fmt.Sprintf("must contain at most %d items", maxSize))
	}

	out := &ValidationError{Fields: map[string]string{}}
	for i, item := range items {
		err := ValidationFromErr(fmt.Sprintf("%s[%d].", name, i), item.Validate())
		if err == nil {
			continue
		}
		verr, ok := err.(*ValidationError)
		if !ok {
			return err
		}
		out.Merge(verr)
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}
