package user

import (
	"errors"
	"sort"

	"github.com/Sternrassler/user-service/internal/apperror"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// CreateInput is the body of a create request.
type CreateInput struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	PhoneNumber   string `json:"phone_number"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2"`
	City          string `json:"city"`
	StateProvince string `json:"state_province"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	UserType      string `json:"user_type"`
}

// Validate implements validation.Validatable.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat, validation.Length(0, 100)),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 255)),
		validation.Field(&in.FirstName, validation.Length(0, 50)),
		validation.Field(&in.LastName, validation.Length(0, 50)),
		validation.Field(&in.PhoneNumber, validation.Length(0, 20)),
		validation.Field(&in.AddressLine1, validation.Length(0, 100)),
		validation.Field(&in.AddressLine2, validation.Length(0, 100)),
		validation.Field(&in.City, validation.Length(0, 50)),
		validation.Field(&in.StateProvince, validation.Length(0, 50)),
		validation.Field(&in.PostalCode, validation.Length(0, 10)),
		validation.Field(&in.Country, validation.Length(0, 50)),
		validation.Field(&in.UserType, validation.In(TypeCustomer, TypeAdmin)),
	)
}

// UpdateInput is the body of a partial update. Nil fields are left
// unchanged; the same limits as CreateInput apply to the rest.
type UpdateInput struct {
	Username      *string `json:"username"`
	Email         *string `json:"email"`
	Password      *string `json:"password"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	PhoneNumber   *string `json:"phone_number"`
	AddressLine1  *string `json:"address_line1"`
	AddressLine2  *string `json:"address_line2"`
	City          *string `json:"city"`
	StateProvince *string `json:"state_province"`
	PostalCode    *string `json:"postal_code"`
	Country       *string `json:"country"`
	UserType      *string `json:"user_type"`
}

// Validate implements validation.Validatable.
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.NilOrNotEmpty, validation.Length(1, 50)),
		validation.Field(&in.Email, validation.NilOrNotEmpty, is.EmailFormat, validation.Length(0, 100)),
		validation.Field(&in.Password, validation.NilOrNotEmpty, validation.Length(8, 255)),
		validation.Field(&in.FirstName, validation.Length(0, 50)),
		validation.Field(&in.LastName, validation.Length(0, 50)),
		validation.Field(&in.PhoneNumber, validation.Length(0, 20)),
		validation.Field(&in.AddressLine1, validation.Length(0, 100)),
		validation.Field(&in.AddressLine2, validation.Length(0, 100)),
		validation.Field(&in.City, validation.Length(0, 50)),
		validation.Field(&in.StateProvince, validation.Length(0, 50)),
		validation.Field(&in.PostalCode, validation.Length(0, 10)),
		validation.Field(&in.Country, validation.Length(0, 50)),
		validation.Field(&in.UserType, validation.NilOrNotEmpty, validation.In(TypeCustomer, TypeAdmin)),
	)
}

// Empty reports whether no field is set.
func (in UpdateInput) Empty() bool {
	return in == UpdateInput{}
}

// Issue is one failed validation rule.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// validationError turns an ozzo-validation result into an unprocessable
// application error listing every issue, ordered by field.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return apperror.Internal(err)
	}

	issues := make([]Issue, 0, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		issues = append(issues, Issue{Path: field, Message: fieldErr.Error()})
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })

	return apperror.Unprocessable("Unprocessable Entity").WithContext("issues", issues)
}
