package audio

import (
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
)

// blockSamples is the read granularity for file- and reader-backed
// sources, 100ms at 16kHz. Small enough that cancellation is responsive.
const blockSamples = 1600

// FileSource replays a PCM16 mono WAV file as an AudioSource. Used by the
// process command to run an already-recorded file through the same
// pipeline as live capture.
type FileSource struct {
	file       *os.File
	sampleRate int
	remaining  uint32
}

var _ interfaces.AudioSource = &FileSource{}

// OpenFile opens a WAV file as an audio source
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from CLI argument
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open audio file", goerr.V("path", path))
	}

	var header wavHeader
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		_ = f.Close()
		return nil, goerr.Wrap(err, "failed to read WAV header", goerr.V("path", path))
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		_ = f.Close()
		return nil, goerr.New("not a WAV file", goerr.V("path", path))
	}
	if header.AudioFormat != 1 || header.NumChannels != 1 || header.BitsPerSample != 16 {
		_ = f.Close()
		return nil, goerr.New("only PCM16 mono WAV is supported",
			goerr.V("path", path),
			goerr.V("format", header.AudioFormat),
			goerr.V("channels", header.NumChannels),
			goerr.V("bits", header.BitsPerSample))
	}

	return &FileSource{
		file:       f,
		sampleRate: int(header.SampleRate),
		remaining:  header.Subchunk2Size,
	}, nil
}

// SampleRate returns the file sample rate in Hz
func (s *FileSource) SampleRate() int {
	return s.sampleRate
}

// ReadBlock returns the next block of samples, io.EOF at end of file
func (s *FileSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.remaining == 0 {
		return nil, io.EOF
	}

	n := uint32(blockSamples * 2)
	if s.remaining < n {
		n = s.remaining
	}

	block := make([]int16, n/2)
	if err := binary.Read(s.file, binary.LittleEndian, block); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.remaining = 0
			return nil, io.EOF
		}
		return nil, goerr.Wrap(err, "failed to read audio block")
	}
	s.remaining -= n

	return block, nil
}

// Close closes the underlying file
func (s *FileSource) Close() error {
	return s.file.Close()
}
