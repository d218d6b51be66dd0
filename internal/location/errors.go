package location

import "errors"

var (
	// ErrNotFound indicates no readable source file was found.
	ErrNotFound = errors.New("source file not found")

	// ErrIgnored indicates the user asked not to be prompted for the file again.
	ErrIgnored = errors.New("source file ignored")

	// ErrNoAddress indicates a frame has neither source nor address information.
	ErrNoAddress = errors.New("frame has no address")

	// ErrNoInstruction indicates every disassembled instruction lies above
	// the address being placed.
	ErrNoInstruction = errors.New("no instruction at or below address")

	// ErrWatcherClosed indicates the source watcher has been closed.
	ErrWatcherClosed = errors.New("source watcher closed")
)
