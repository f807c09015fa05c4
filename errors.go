package jpostcode

import "errors"

// Errors returned by index build, load and configuration. A lookup miss is
// never an error: lookups return an empty slice instead.
var (
	// ErrInvalidRegion is returned when a region name is not one of Regions().
	ErrInvalidRegion = errors.New("invalid region")

	// ErrBuildInconsistency is returned when an interning table fails its
	// uniqueness check. The dataset cannot be trusted for that build.
	ErrBuildInconsistency = errors.New("build inconsistency")

	// ErrMalformedRecord is returned when a raw row carries a postal code
	// that is not a decimal number.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrBuilderClosed is returned when Add or Build is called after Build.
	ErrBuilderClosed = errors.New("builder already built")

	// ErrInvalidInput is returned by NormalizeValue for a nil or unsupported value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptIndex is returned when a serialized index fails to decode.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrUnsupportedVersion is returned for a blob written with another format version.
	ErrUnsupportedVersion = errors.New("unsupported index format version")

	// ErrIndexNotFound is returned by Store.Load when no blob exists for a region.
	ErrIndexNotFound = errors.New("index not found")
)
