package validator

import (
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-quota/errcode"
)

type resetRequest struct {
	Category  string
	Principal string
}

func (r resetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Category, validation.Required, validation.In("auth", "api")),
		validation.Field(&r.Principal, validation.Required),
	)
}

type plainErrRequest struct{ err error }

func (r plainErrRequest) Validate() error { return r.err }

func TestValidateRequest_Valid(t *testing.T) {
	assert.NoError(t, ValidateRequest(resetRequest{Category: "api", Principal: "u1"}))
}

func TestValidateRequest_FieldErrors(t *testing.T) {
	err := ValidateRequest(resetRequest{Category: "uploads"})
	require.Error(t, err)

	var layered *errcode.LayeredError
	require.ErrorAs(t, err, &layered)
	assert.Equal(t, http.StatusBadRequest, layered.HTTPStatus())
	assert.Equal(t, 101010, layered.Code())
	assert.ErrorIs(t, err, ErrValidationFailed)

	fields, ok := layered.Data()["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "Category")
	assert.Contains(t, fields, "Principal")
}

func TestValidateRequest_OtherErrorsPassThrough(t *testing.T) {
	plain := errors.New("decode failed")
	assert.Same(t, plain, ValidateRequest(plainErrRequest{err: plain}))

	internal := validation.NewInternalError(errors.New("bad rule"))
	assert.Equal(t, internal, ValidateRequest(plainErrRequest{err: internal}))
}

func TestConvertValidationError_SkipsNilEntries(t *testing.T) {
	err := ConvertValidationError(validation.Errors{"a": errors.New("bad"), "b": nil})

	var layered *errcode.LayeredError
	require.ErrorAs(t, err, &layered)
	assert.Equal(t, map[string]string{"a": "bad"}, layered.Data()["fields"])
}
