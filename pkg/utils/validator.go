package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// Phone number: optional leading +, 10 to 15 digits
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	// Product id: letters, digits, underscore and dash
	productIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// ValidateStruct validates struct
func ValidateStruct(obj interface{}) error {
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// FormatBindingError turns a gin binding error into an AppError with a
// readable message.
func FormatBindingError(err error) *AppError {
	return formatValidationError(err)
}

func formatValidationError(err error) *AppError {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return NewError(CodeInvalidParam, strings.Join(messages, "; "))
	}
	return NewErrorWithErr(CodeInvalidParam, "invalid parameters: "+err.Error(), err)
}

func getFieldErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	param := fieldError.Param()

	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "isodate":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "productid":
		return fmt.Sprintf("%s must be a valid product id", field)
	case "nonnegative":
		return fmt.Sprintf("%s must be non-negative", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "dive":
		return fmt.Sprintf("%s contains an invalid element", field)
	default:
		return fmt.Sprintf("%s validation failed", field)
	}
}

// RegisterCustomValidators registers custom validators on gin's engine
func RegisterCustomValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("phone", validatePhone)
	v.RegisterValidation("isodate", validateISODate)
	v.RegisterValidation("productid", validateProductID)
	v.RegisterValidation("nonnegative", validateNonNegative)

	// Report json names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// IsValidPhone reports whether phone looks like a dialable number
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// IsValidProductID reports whether id is a well-formed product id
func IsValidProductID(id string) bool {
	return productIDRegex.MatchString(id)
}

func validatePhone(fl validator.FieldLevel) bool {
	return IsValidPhone(fl.Field().String())
}

func validateProductID(fl validator.FieldLevel) bool {
	return IsValidProductID(fl.Field().String())
}

func validateISODate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := ParseDate(value)
	return err == nil
}

func validateNonNegative(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		return fl.Field().Float() >= 0
	default:
		return false
	}
}
