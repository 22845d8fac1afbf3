// Package apperrors defines the typed errors returned by the lifecycle engine.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindForbidden  Kind = "FORBIDDEN"
	KindConflict   Kind = "CONFLICT"
	KindNotFound   Kind = "NOT_FOUND"
)

type Code string

// Forbidden codes.
const (
	CodeForbidden             Code = "FORBIDDEN"
	CodeIdentityNotVerified   Code = "IDENTITY_NOT_VERIFIED"
	CodeBiometricFailed       Code = "BIOMETRIC_FAILED"
	CodeAdminOverrideRequired Code = "ADMIN_OVERRIDE_REQUIRED"
)

// Conflict codes.
const (
	CodeInvalidStateTransition   Code = "INVALID_STATE_TRANSITION"
	CodeConcurrentModification   Code = "CONCURRENT_MODIFICATION"
	CodeActiveShiftExists        Code = "ACTIVE_SHIFT_EXISTS"
	CodeActiveTripExists         Code = "ACTIVE_TRIP_EXISTS"
	CodeNoActiveShift            Code = "NO_ACTIVE_SHIFT"
	CodeNoVehicleAssigned        Code = "NO_VEHICLE_ASSIGNED"
	CodeVehicleAlreadyAssigned   Code = "VEHICLE_ALREADY_ASSIGNED"
	CodeDriverAlreadyHasVehicle  Code = "DRIVER_ALREADY_HAS_VEHICLE"
	CodeVehicleLocked            Code = "VEHICLE_LOCKED"
	CodeVehicleHasOpenDamage     Code = "VEHICLE_HAS_OPEN_DAMAGE"
	CodeInspectionRequired       Code = "INSPECTION_REQUIRED"
	CodeInspectionPhotosRequired Code = "INSPECTION_PHOTOS_REQUIRED"
	CodeAlreadyExists            Code = "ALREADY_EXISTS"
)

const (
	CodeValidation Code = "VALIDATION_FAILED"
	CodeNotFound   Code = "NOT_FOUND"
)

// Error is the single error type of the domain. Kind selects the response
// class, Code the precise reason.
type Error struct {
	Kind    Kind                   `json:"kind"`
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func Validation(message string, details map[string]interface{}) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Details: details}
}

func Forbidden(code Code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Conflict(code Code, message string, details map[string]interface{}) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Details: details}
}

func NotFound(entity string, id interface{}) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]interface{}{"entity": entity, "id": fmt.Sprint(id)},
	}
}

// As extracts the domain error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// HTTPStatus maps err to a response status. Errors outside the domain are 500.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
