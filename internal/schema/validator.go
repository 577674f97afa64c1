package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator handles validation of events against the canonical schema.
// Validation happens once at the ingestion boundary so detector logic
// never has to access fields defensively.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return EventType(fl.Field().String()).IsValid()
	})

	return &Validator{validate: v}
}

// Validate validates an event against the canonical schema.
// Returns an error if validation fails.
func (v *Validator) Validate(event *Event) error {
	if err := v.validate.Struct(event); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateBatch validates a batch of events and checks that timestamps are
// non-decreasing within the batch, which the engine's rolling windows
// depend on. The index of the first offending event is reported.
func (v *Validator) ValidateBatch(events []*Event) error {
	var prev int64
	for i, e := range events {
		if err := v.Validate(e); err != nil {
			return fmt.Errorf("event[%d]: %w", i, err)
		}
		if e.TS < prev {
			return fmt.Errorf("event[%d]: timestamp %d out of order (previous %d)", i, e.TS, prev)
		}
		prev = e.TS
	}
	return nil
}
