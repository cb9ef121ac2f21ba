package interfaces

import "context"

// AudioSource supplies the continuous stream of captured samples. Device
// enumeration and selection live entirely outside the pipeline; the core
// needs only this read contract.
type AudioSource interface {
	// SampleRate returns the source sample rate in Hz
	SampleRate() int
	// ReadBlock returns the next block of PCM16 mono samples. It blocks
	// until samples are available, ctx is cancelled, or the source ends
	// (io.EOF). Any other error is an unrecoverable capture failure.
	ReadBlock(ctx context.Context) ([]int16, error)
	// Close releases the device
	Close() error
}
