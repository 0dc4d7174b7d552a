package appointment

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every typed error below matches exactly one of these with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidRange = errors.New("invalid time range")
	ErrSlotConflict = errors.New("slot unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPersistence  = errors.New("persistence failure")
	ErrPolicy       = errors.New("booking policy violated")
	ErrScheduleBusy = errors.New("schedule is being modified, please retry")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type InvalidRangeError struct {
	Start string
	End   string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("end time %s must be after start time %s", e.End, e.Start)
}

func (e *InvalidRangeError) Is(target error) bool { return target == ErrInvalidRange }

type SlotConflictError struct {
	Date           string
	Start          string
	End            string
	ConflictingIDs []string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot unavailable: %s %s-%s overlaps %s", e.Date, e.Start, e.End, strings.Join(e.ConflictingIDs, ","))
}

func (e *SlotConflictError) Is(target error) bool { return target == ErrSlotConflict }

type UnauthorizedError struct {
	Role     Role
	Required Role
}

func (e *UnauthorizedError) Error() string {
	role := string(e.Role)
	if role == "" {
		role = "anonymous"
	}
	return fmt.Sprintf("role %s may not book, %s required", role, e.Required)
}

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// PersistenceError reports a durable-storage failure. Op is one of read, decode, encode or write.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

type PolicyError struct {
	Rule  string
	Value string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Value)
}

func (e *PolicyError) Is(target error) bool { return target == ErrPolicy }
