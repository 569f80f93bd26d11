// Package repository defines the persistence layer for capacity counters
// and the reservation ledger.  Sentinel errors declared here let the
// service layer distinguish failure scenarios without inspecting driver
// errors directly.
package repository

import "errors"

// ErrUnitNotFound is returned when an operation references a sellable
// unit that has no capacity_units row.
var ErrUnitNotFound = errors.New("capacity unit not found")

// ErrUnitExists is returned when creating a unit whose ID is already
// taken.
var ErrUnitExists = errors.New("capacity unit already exists")

// ErrCapacityBelowCommitted is returned when an admin attempts to lower
// max_capacity beneath the units already reserved or sold.
var ErrCapacityBelowCommitted = errors.New("max capacity below committed count")
