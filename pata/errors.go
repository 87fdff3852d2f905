package pata

import "errors"

// Drive errors. They accompany the sentinel return values of the protocol
// operations (zero bytes read, ModeNotInitialized) and are also logged.
var (
	// ErrDriveAbsent indicates the status register showed not-busy at probe.
	ErrDriveAbsent = errors.New("drive not found")

	// ErrInitTimeout indicates the drive never became ready during init.
	ErrInitTimeout = errors.New("drive ready timeout")

	// ErrLBAUnsupported indicates the drive refused LBA addressing. It is
	// not fatal: initialization continues in CHS mode.
	ErrLBAUnsupported = errors.New("LBA mode not available")

	// ErrTransferMode indicates the drive aborted the 8-bit transfer
	// feature. Initialization fails.
	ErrTransferMode = errors.New("8-bit transfer mode could not be set")

	// ErrStatusTimeout indicates a status wait ran out of retries.
	ErrStatusTimeout = errors.New("status wait timeout")

	// ErrBufferSize indicates a buffer shorter than one sector was passed
	// to a write.
	ErrBufferSize = errors.New("buffer shorter than one sector")
)
