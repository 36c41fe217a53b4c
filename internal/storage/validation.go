// Package storage provides the data persistence layer for the meterflow
// application: the unit catalog, the meter/group hierarchy, and the cached
// compatibility relation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meterflow/meterflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidUnit  = errors.New("invalid unit")
	ErrInvalidMeter = errors.New("invalid meter")
	ErrInvalidGroup = errors.New("invalid group")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateUnit validates a unit before it is written to the catalog.
func validateUnit(unit *model.Unit) error {
	if unit == nil {
		return fmt.Errorf("%w: unit", ErrNilParameter)
	}
	if strings.TrimSpace(unit.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidUnit)
	}
	if strings.TrimSpace(unit.Symbol) == "" {
		return fmt.Errorf("%w: symbol cannot be empty", ErrInvalidUnit)
	}
	if !unit.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidUnit, unit.Kind)
	}
	if unit.Index < 0 {
		return fmt.Errorf("%w: negative relation index %d", ErrInvalidUnit, unit.Index)
	}
	return nil
}

// validateMeter validates a meter before it is written.
func validateMeter(meter *model.Meter) error {
	if meter == nil {
		return fmt.Errorf("%w: meter", ErrNilParameter)
	}
	if strings.TrimSpace(meter.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidMeter)
	}
	if meter.UnitID < 0 {
		return fmt.Errorf("%w: negative unit id %d", ErrInvalidMeter, meter.UnitID)
	}
	if meter.GroupID < 0 {
		return fmt.Errorf("%w: negative group id %d", ErrInvalidMeter, meter.GroupID)
	}
	return nil
}

// validateGroup validates a group before it is written.
func validateGroup(group *model.Group) error {
	if group == nil {
		return fmt.Errorf("%w: group", ErrNilParameter)
	}
	if strings.TrimSpace(group.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidGroup)
	}
	if group.ParentID < 0 {
		return fmt.Errorf("%w: negative parent id %d", ErrInvalidGroup, group.ParentID)
	}
	if group.DefaultUnitID < 0 {
		return fmt.Errorf("%w: negative default unit id %d", ErrInvalidGroup, group.DefaultUnitID)
	}
	return nil
}
