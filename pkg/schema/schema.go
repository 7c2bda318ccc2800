// Package schema validates tool arguments against their declared input
// schema before any handler runs, and decodes validated argument maps into
// typed handler inputs.
package schema

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mitchellh/mapstructure"
)

// ValidationError describes a single rejected argument.
type ValidationError struct {
	Key    string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// AggregateError collects every validation failure found in one pass, so the
// caller can report all bad arguments at once instead of one per retry.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "invalid arguments: " + strings.Join(msgs, "; ")
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Validate checks args against the object schema. A nil schema means no
// validation. All failures are aggregated; the returned error is nil only if
// every argument conforms.
func Validate(s *openapi3.Schema, args map[string]any) error {
	if s == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	err := s.VisitJSON(args, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	var errs []error
	switch typed := err.(type) {
	case openapi3.MultiError:
		for _, sub := range typed {
			errs = append(errs, toValidationError(sub))
		}
	default:
		errs = append(errs, toValidationError(err))
	}
	return &AggregateError{Errors: errs}
}

func toValidationError(err error) error {
	if se, ok := err.(*openapi3.SchemaError); ok {
		key := ""
		if path := se.JSONPointer(); len(path) > 0 {
			key = strings.Join(path, ".")
		}
		return &ValidationError{Key: key, Reason: se.Reason, Value: se.Value}
	}
	return &ValidationError{Reason: err.Error()}
}

// Decode populates dst (a struct pointer with json tags) from a validated
// argument map. Numeric widening is allowed because JSON decoding produces
// float64 for every number.
func Decode(args map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	return nil
}
