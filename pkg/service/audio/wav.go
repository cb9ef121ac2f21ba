package audio

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/m-mizutani/goerr/v2"
)

// wavHeader is the 44-byte RIFF/WAVE header for PCM16 mono audio
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

func newWAVHeader(sampleRate int, dataSize uint32) wavHeader {
	const (
		numChannels   = uint16(1)
		bitsPerSample = uint16(16)
	)
	return wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeWAV encodes PCM16 mono samples into a WAV file image
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, goerr.New("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, goerr.New("sample rate must be positive", goerr.V("sample_rate", sampleRate))
	}

	dataSize := uint32(len(samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, newWAVHeader(sampleRate, dataSize)); err != nil {
		return nil, goerr.Wrap(err, "failed to write WAV header")
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, goerr.Wrap(err, "failed to write WAV samples")
	}

	return buf.Bytes(), nil
}

// SessionWriter streams the continuous session recording to a WAV file while
// chunks are produced in parallel. The header sizes are patched on Close.
type SessionWriter struct {
	file       *os.File
	sampleRate int
	written    uint32
}

// NewSessionWriter creates the session file and reserves the header
func NewSessionWriter(path string, sampleRate int) (*SessionWriter, error) {
	f, err := os.Create(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session audio file", goerr.V("path", path))
	}

	if err := binary.Write(f, binary.LittleEndian, newWAVHeader(sampleRate, 0)); err != nil {
		_ = f.Close()
		return nil, goerr.Wrap(err, "failed to write session WAV header")
	}

	return &SessionWriter{file: f, sampleRate: sampleRate}, nil
}

// Append writes a block of samples to the session file
func (w *SessionWriter) Append(samples []int16) error {
	if err := binary.Write(w.file, binary.LittleEndian, samples); err != nil {
		return goerr.Wrap(err, "failed to append session audio")
	}
	w.written += uint32(len(samples) * 2)
	return nil
}

// Close patches the header sizes and closes the file
func (w *SessionWriter) Close() error {
	if _, err := w.file.Seek(0, 0); err != nil {
		_ = w.file.Close()
		return goerr.Wrap(err, "failed to rewind session audio file")
	}
	if err := binary.Write(w.file, binary.LittleEndian, newWAVHeader(w.sampleRate, w.written)); err != nil {
		_ = w.file.Close()
		return goerr.Wrap(err, "failed to patch session WAV header")
	}
	if err := w.file.Close(); err != nil {
		return goerr.Wrap(err, "failed to close session audio file")
	}
	return nil
}
