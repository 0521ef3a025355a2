// Package validator turns ozzo-validation failures into client-facing layered errors
package validator

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-quota/errcode"
)

// Validatable requests that validate themselves
type Validatable interface {
	Validate() error
}

// ErrValidationFailed shared code for rejected request payloads
var ErrValidationFailed = errcode.Register(errcode.New(
	10, 1010, "common", "VALIDATION_FAILED", "Request validation failed", http.StatusBadRequest))

// ValidateRequest runs req.Validate and converts field errors to ErrValidationFailed
//
// Internal rule errors (validation.InternalError) pass through untouched.
func ValidateRequest(req Validatable) error {
	err := req.Validate()
	if err == nil {
		return nil
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return ConvertValidationError(fieldErrs)
	}
	return err
}

// ConvertValidationError field -> message map under data.fields
func ConvertValidationError(fieldErrs validation.Errors) error {
	fields := make(map[string]string, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return ErrValidationFailed.WithData("fields", fields)
}
