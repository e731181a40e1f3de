package inventory

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationError lists rejected fields keyed by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "inventory: invalid input (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FieldErrors returns the rejected fields for problem responses.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }

// NewValidator returns a validator that reports fields by JSON name.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct validates s and folds validator output into a ValidationError.
func checkStruct(v *validator.Validate, s any) *ValidationError {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	fields := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["_"] = err.Error()
		return &ValidationError{Fields: fields}
	}
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " characters"
	case "max":
		return "must have at most " + fe.Param() + " characters"
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}

func (e *ValidationError) add(field, msg string) *ValidationError {
	if e == nil {
		e = &ValidationError{Fields: map[string]string{}}
	}
	e.Fields[field] = msg
	return e
}

func checkPrice(verr *ValidationError, price decimal.Decimal) *ValidationError {
	if price.IsNegative() {
		return verr.add("unit_price", "must be at least 0")
	}
	return verr
}

func validateProductInput(v *validator.Validate, in ProductInput) error {
	verr := checkPrice(checkStruct(v, in), in.UnitPrice)
	if verr != nil {
		return verr
	}
	return nil
}

func validateProductPatch(v *validator.Validate, p ProductPatch) error {
	verr := checkStruct(v, p)
	if p.UnitPrice != nil {
		verr = checkPrice(verr, *p.UnitPrice)
	}
	if verr != nil {
		return verr
	}
	return nil
}

func validateInput(v *validator.Validate, in any) error {
	if verr := checkStruct(v, in); verr != nil {
		return verr
	}
	return nil
}

// checkRows runs the ingress check over rows returned by the data store.
func checkRows[T any](v *validator.Validate, table string, rows []T) error {
	for i := range rows {
		if err := v.Struct(rows[i]); err != nil {
			return fmt.Errorf("%w: %s row %d: %v", ErrMalformedRow, table, i, err)
		}
	}
	return nil
}

func checkRow[T any](v *validator.Validate, table string, row T) error {
	if err := v.Struct(row); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRow, table, err)
	}
	return nil
}
