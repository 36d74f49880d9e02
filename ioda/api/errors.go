package api

import (
	"errors"

	"github.com/batchatco/go-native-ioda/ioda/types"
)

var (
	// ErrPath is returned when a path or its parent directory is missing or invalid
	ErrPath = errors.New("invalid path")

	// ErrWriteProtected is returned for writes through a read-only handle, and for
	// creating over a file that may not be replaced
	ErrWriteProtected = errors.New("write protected")

	// ErrNotFound is returned for lookups of a group, variable, attribute or
	// dimension that does not exist
	ErrNotFound = errors.New("not found")

	ErrDuplicatePath      = errors.New("duplicate path")
	ErrDuplicateDimension = errors.New("duplicate dimension")
	ErrDuplicateGroup     = errors.New("duplicate group")
	ErrDuplicateAttribute = errors.New("duplicate attribute")

	// ErrDimensionMismatch is returned when a variable's dimension list is empty
	// or names an unknown dimension
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidDimension is returned for a dimension scale that cannot be
	// materialized, e.g. a second unlimited dimension or a negative length
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrInvalidName is returned for names that fail validation
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidLayout is returned for an unknown layout policy id
	ErrInvalidLayout = errors.New("invalid layout policy")

	// ErrInvalidParams is returned for bad variable creation parameters
	ErrInvalidParams = errors.New("invalid creation parameters")

	// ErrClosed is returned when a handle is used after its file was closed
	ErrClosed = errors.New("file already closed")

	// ErrAlreadyWritten is returned for a second write to a write-once attribute
	ErrAlreadyWritten = errors.New("attribute already written")

	// ErrCorrupted is returned when file inconsistencies are found
	ErrCorrupted = errors.New("corrupted file")

	// ErrUnknownFormat is returned when no engine recognizes the file
	ErrUnknownFormat = errors.New("unknown container format")
)

// Type-related failures are owned by the type registry; they are repeated
// here so callers can find the whole taxonomy in one place.
var (
	ErrTypeMismatch    = types.ErrTypeMismatch
	ErrShapeMismatch   = types.ErrShapeMismatch
	ErrUnsupportedType = types.ErrUnsupportedType
)
