package bitmapcache

import "errors"

var (
	// ErrCellOutOfRange is returned when a cell id falls outside
	// [0, max_cells).
	ErrCellOutOfRange = errors.New("bitmapcache: cell id out of range")

	// ErrIndexOutOfRange is returned when an index falls outside
	// [0, cell.Capacity()].
	ErrIndexOutOfRange = errors.New("bitmapcache: slot index out of range")

	// ErrBadConfiguration is returned when a cache or persistent-store
	// configuration value is invalid (§7 BadConfiguration).
	ErrBadConfiguration = errors.New("bitmapcache: invalid configuration")
)
