package audio

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
)

// ReaderSource adapts a raw little-endian PCM16 mono byte stream (a capture
// tool piped over stdin, typically) into an AudioSource. The reader owns
// timing: ReadBlock returns whatever is available, paced by the writer.
type ReaderSource struct {
	r          io.Reader
	sampleRate int
	buf        []byte
}

var _ interfaces.AudioSource = &ReaderSource{}

// NewReaderSource wraps a PCM16 byte stream at the given sample rate
func NewReaderSource(r io.Reader, sampleRate int) (*ReaderSource, error) {
	if sampleRate <= 0 {
		return nil, goerr.New("sample rate must be positive", goerr.V("rate", sampleRate))
	}
	return &ReaderSource{
		r:          r,
		sampleRate: sampleRate,
		buf:        make([]byte, blockSamples*2),
	}, nil
}

// SampleRate returns the configured sample rate
func (s *ReaderSource) SampleRate() int {
	return s.sampleRate
}

// ReadBlock reads the next block of samples. Returns io.EOF when the
// stream ends; a short trailing read still yields its samples.
func (s *ReaderSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := io.ReadFull(s.r, s.buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, goerr.Wrap(err, "failed to read audio stream")
	}

	// Drop a trailing odd byte; samples are 2 bytes each
	n -= n % 2
	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
	}
	return samples, nil
}

// Close is a no-op; the caller owns the underlying reader
func (s *ReaderSource) Close() error {
	return nil
}
