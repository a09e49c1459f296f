package order

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	publicKeyPattern = regexp.MustCompile(`^pk_(test|live)_(.+)$`)
	validate         = newValidator()
)

// minorUnits lists ISO 4217 currencies whose minor unit differs from two digits.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnits returns the number of fraction digits used by the currency.
func MinorUnits(currency string) int32 {
	if n, ok := minorUnits[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return n
	}
	return 2
}

// ValidationError describes the first field that broke an OrderRequest invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Validate checks the OrderRequest invariants: required fields, enum values,
// public key format, non-negative amount and currency minor units.
func (r OrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return normalizeValidationError(err)
	}
	amount := r.Order.Amount.Decimal
	if amount.IsNegative() {
		return &ValidationError{Field: "order.amount", Message: "must not be negative"}
	}
	units := MinorUnits(r.Order.Currency)
	if !amount.Equal(amount.Truncate(units)) {
		return &ValidationError{Field: "order.amount", Message: fmt.Sprintf("must have at most %d fraction digits for %s", units, r.Order.Currency)}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	if err := v.RegisterValidation("publickey", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return publicKeyPattern.MatchString(value)
	}); err != nil {
		panic(err)
	}
	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	first := validationErrs[0]
	return &ValidationError{Field: jsonPath(first), Message: validationMessage(first)}
}

func jsonPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "iso3166_1_alpha2":
		return "must be an ISO 3166-1 alpha-2 country code"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be an absolute URL"
	case "publickey":
		return "must look like pk_{test|live}_{siteId}"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
