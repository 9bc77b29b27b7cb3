package application

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/example/tutorbook/internal/scheduler"
)

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("clock", validateClock)
	return validate
}

// validateClock accepts HH:MM wall-clock values between 00:00 and 23:59.
func validateClock(fl validator.FieldLevel) bool {
	_, err := scheduler.ParseClock(fl.Field().String())
	return err == nil
}

// validateStruct runs the struct tag rules and converts failures into field
// errors keyed by wire name. prefix namespaces nested entries, e.g. "entries[2]".
func validateStruct(input any, prefix string) *ValidationError {
	vErr := &ValidationError{}
	err := inputValidator.Struct(input)
	if err == nil {
		return vErr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vErr.add(strings.TrimSuffix(prefix, "."), err.Error())
		return vErr
	}
	for _, fe := range fieldErrs {
		vErr.add(prefix+wireName(fe.Field()), fieldMessage(fe))
	}
	return vErr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "clock":
		return "must be HH:MM between 00:00 and 23:59"
	case "datetime":
		return fmt.Sprintf("must be a date formatted %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// wireName converts a Go field name such as "SpeakerID" into "speakerId".
func wireName(field string) string {
	if strings.HasSuffix(field, "ID") {
		field = strings.TrimSuffix(field, "ID") + "Id"
	}
	r, size := utf8.DecodeRuneInString(field)
	if r == utf8.RuneError {
		return field
	}
	return string(unicode.ToLower(r)) + field[size:]
}

// normalizeTopics trims topics and drops empty ones.
func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		if trimmed := strings.TrimSpace(topic); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
