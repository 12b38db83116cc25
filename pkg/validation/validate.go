package validation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToString(value, err)
	}

	return value, nil
}

func ValidateValue(value any, tag string) error {
	err := validate.Var(value, tag)
	if err != nil {
		return ValidationErrorToString(value, err)
	}
	return nil
}

// BindRequest decodes the request body into T and validates it. An empty
// body yields the zero value, which is then validated like any other.
func BindRequest[T any](c echo.Context) (T, error) {
	var req T
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return req, httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	if _, err := Validate(req); err != nil {
		return req, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return req, nil
}

func ValidationErrorToString(input any, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fmt.Sprintf("failed %T validation for field '%s': rule '%s' expected '%s', got '%v'", input, fe.StructField(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return errors.New(strings.Join(messages, "; "))
}
