package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/gyan/internal/domain"
)

// BirthDateLayout is the accepted birth date format.
const BirthDateLayout = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[\d\s\-()]{10,}$`)
)

// Field messages shown next to the offending input.
var fieldMessages = map[string]string{
	"required":     "This field is required.",
	"simple_email": "Please enter a valid email address.",
	"phone10":      "Please enter a valid mobile number.",
	"birth_date":   "Please enter a valid birth date. It cannot be in the future.",
}

// Validator checks customer details with go-playground/validator and
// reports every failing field at once.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

func NewValidator() *Validator {
	cv := &Validator{
		v:   validator.New(validator.WithRequiredStructEnabled()),
		now: time.Now,
	}

	// Report fields by their JSON names, the names the form uses.
	cv.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(cv.v, "simple_email", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})
	mustRegister(cv.v, "phone10", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})
	mustRegister(cv.v, "birth_date", func(fl validator.FieldLevel) bool {
		return cv.validBirthDate(fl.Field().String())
	})

	return cv
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsValidPhone accepts digits, spaces, dashes, parentheses and a leading
// plus, with at least ten digits in total.
func IsValidPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 10
}

func (cv *Validator) validBirthDate(s string) bool {
	d, err := time.Parse(BirthDateLayout, s)
	if err != nil {
		return false
	}
	y, m, day := cv.now().Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return !d.After(today)
}

// ValidateCustomer returns a *domain.ValidationError naming every invalid
// field of c, or nil.
func (cv *Validator) ValidateCustomer(op string, c domain.CustomerDetails) error {
	err := cv.v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "failed to validate customer details")
	}

	ve := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		if _, seen := ve.Fields[fe.Field()]; seen {
			continue
		}
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "This field is invalid."
		}
		ve.Fields[fe.Field()] = msg
	}
	return ve
}

// normalizeCustomer trims surrounding whitespace from every field so that
// blank input fails the required check.
func normalizeCustomer(c domain.CustomerDetails) domain.CustomerDetails {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.BirthDate = strings.TrimSpace(c.BirthDate)
	c.BirthTime = strings.TrimSpace(c.BirthTime)
	c.BirthPlace = strings.TrimSpace(c.BirthPlace)
	c.Gender = strings.TrimSpace(c.Gender)
	c.MaritalStatus = strings.TrimSpace(c.MaritalStatus)
	return c
}
