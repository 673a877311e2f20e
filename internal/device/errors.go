package device

import "errors"

var (
	// ErrDeviceNotFound indicates the requested device does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists indicates a device with the same ID already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrRoomTypeTaken indicates the room already has a device of this type.
	ErrRoomTypeTaken = errors.New("device: room already has a device of this type")

	// ErrInvalidDevice indicates the device failed validation.
	ErrInvalidDevice = errors.New("device: invalid device")
)
