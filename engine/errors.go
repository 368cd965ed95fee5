package engine

import "errors"

// Error kinds surfaced to the host. Lower-layer causes (archive, xml,
// cfi, tts) wrap through these where the host needs the distinction.
var (
	// ErrBookNotFound indicates a handle unknown to the registry.
	ErrBookNotFound = errors.New("engine: book not found")

	// ErrLayoutNotComputed indicates mapping or rendering before
	// layout.Compute ran for the book.
	ErrLayoutNotComputed = errors.New("engine: layout not computed")

	// ErrRegistryPoisoned is reserved for host parity with runtimes
	// whose locks poison on panic; Go mutexes do not, so the engine
	// never returns it itself.
	ErrRegistryPoisoned = errors.New("engine: registry poisoned")
)
