package errors

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// ValidationResult holds validation results
type ValidationResult struct {
	IsValid bool
	Errors  []*AppError
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(err *AppError) {
	vr.IsValid = false
	vr.Errors = append(vr.Errors, err)
}

// GetFirstError returns the first error or nil
func (vr *ValidationResult) GetFirstError() *AppError {
	if len(vr.Errors) > 0 {
		return vr.Errors[0]
	}
	return nil
}

// Validator provides validation utilities
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePhotos rejects an empty photo set
func (v *Validator) ValidatePhotos(photos []string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	nonEmpty := 0
	for _, p := range photos {
		if strings.TrimSpace(p) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		result.AddError(ErrNoPhotos)
	}

	return result
}

// ValidateItemID validates item ID format
func (v *Validator) ValidateItemID(id string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if strings.TrimSpace(id) == "" {
		result.AddError(New(ErrTypeValidation, "ID_EMPTY", "item ID cannot be empty").
			WithUserMessage("Item ID is required"))
		return result
	}

	if _, err := uuid.Parse(id); err != nil {
		result.AddError(New(ErrTypeValidation, "ID_INVALID", "invalid item ID format").
			WithUserMessage("Invalid item ID format").
			WithContext("id", id))
	}

	return result
}

// ValidateItem runs a Validatable (typically models.SaleItem) and converts
// field errors into a single AppError carrying one context entry per field.
func (v *Validator) ValidateItem(item validation.Validatable) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	err := item.Validate()
	if err == nil {
		return result
	}

	appErr := ErrInvalidItem.WithCause(err)
	if fieldErrs, ok := err.(validation.Errors); ok {
		for field, fe := range fieldErrs {
			appErr = appErr.WithContext(field, fe.Error())
		}
	}
	result.AddError(appErr)

	return result
}
