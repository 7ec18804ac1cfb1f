// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Field patterns shared with the front end. Keep these in sync with the
// client-side validation so users see the same rejections in both places.
var (
	usernamePattern      = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{10,16}$`)
	swiftCodePattern     = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	accountNamePattern   = regexp.MustCompile(`^[a-zA-Z\s'-]{2,100}$`)
	bankNamePattern      = regexp.MustCompile(`^[a-zA-Z0-9\s&'-]{2,100}$`)
	amountPattern        = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	// Report errors under the JSON field names the client sends.
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// ValidateStructured returns a map of field -> error message for frontend usage
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "This field is required"
				case "oneof":
					msg = fmt.Sprintf("Must be one of: %s", e.Param())
				case "payment_amount":
					msg = "Amount must be a positive number with at most 2 decimal places"
				case "account_number":
					msg = "Account number must be 10-16 digits"
				case "swift_code":
					msg = "Invalid SWIFT code format (e.g., AAAABBCCXXX)"
				case "payee_name":
					msg = "Invalid account name format"
				case "bank_name":
					msg = "Invalid bank name format"
				}
				errs[e.Field()] = msg
			}
		} else {
			errs["_global"] = err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (v *Validator) registerCustomValidations() {
	_ = v.validate.RegisterValidation("payment_amount", func(fl validator.FieldLevel) bool {
		return ValidateAmount(fl.Field().String()) == nil
	})

	_ = v.validate.RegisterValidation("account_number", func(fl validator.FieldLevel) bool {
		return accountNumberPattern.MatchString(fl.Field().String())
	})

	_ = v.validate.RegisterValidation("swift_code", func(fl validator.FieldLevel) bool {
		return swiftCodePattern.MatchString(NormalizeSwiftCode(fl.Field().String()))
	})

	_ = v.validate.RegisterValidation("payee_name", func(fl validator.FieldLevel) bool {
		return accountNamePattern.MatchString(fl.Field().String())
	})

	_ = v.validate.RegisterValidation("bank_name", func(fl validator.FieldLevel) bool {
		return bankNamePattern.MatchString(fl.Field().String())
	})
}

// Sanitize strips surrounding whitespace and angle brackets before any
// pattern check runs, so stored values can never carry markup.
func Sanitize(input string) string {
	trimmed := strings.TrimSpace(input)
	return strings.NewReplacer("<", "", ">", "").Replace(trimmed)
}

// NormalizeSwiftCode uppercases a SWIFT/BIC code prior to pattern matching.
func NormalizeSwiftCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateAmount rejects non-positive values and more than two fractional digits.
// The raw string is checked so amounts like "5.005" fail before any decimal
// rounding could mask them.
func ValidateAmount(raw string) error {
	if !amountPattern.MatchString(raw) {
		return errors.New("amount must be a number with at most 2 decimal places")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return errors.New("invalid amount")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

// ValidateField applies the per-field syntactic rule for a single raw value.
// Unknown field names pass, matching the front end's behaviour.
func ValidateField(name, value string) error {
	switch name {
	case "username":
		if !usernamePattern.MatchString(value) {
			return errors.New("username must be 3-30 characters (lowercase letters, numbers, underscore)")
		}
	case "password":
		if err := validatePassword(value); err != nil {
			return err
		}
	case "accountNumber", "payeeAccountNumber":
		if !accountNumberPattern.MatchString(value) {
			return errors.New("account number must be 10-16 digits")
		}
	case "swiftCode":
		if !swiftCodePattern.MatchString(NormalizeSwiftCode(value)) {
			return errors.New("invalid SWIFT code format (e.g., AAAABBCCXXX)")
		}
	case "amount":
		return ValidateAmount(value)
	case "payeeAccountName":
		if !accountNamePattern.MatchString(value) {
			return errors.New("invalid account name format")
		}
	case "payeeBankName":
		if !bankNamePattern.MatchString(value) {
			return errors.New("invalid bank name format")
		}
	}
	return nil
}

// validatePassword enforces the complexity rule without regexp lookaheads,
// which Go's regexp package does not support.
func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune("@$!%*?&", r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return errors.New("password must contain uppercase, lowercase, number and special character")
	}
	return nil
}
