package audio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/pilot/pkg/service/audio"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func rampSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	return samples
}

func readAll(t *testing.T, src *audio.FileSource) []int16 {
	t.Helper()
	var got []int16
	for {
		block, err := src.ReadBlock(context.Background())
		if err == io.EOF {
			return got
		}
		gt.NoError(t, err).Required()
		got = append(got, block...)
	}
}

func TestEncodeWAVRoundtrip(t *testing.T) {
	samples := rampSamples(4000)
	data, err := audio.EncodeWAV(samples, 16000)
	gt.NoError(t, err).Required()
	gt.Value(t, len(data)).Equal(44 + len(samples)*2)

	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	gt.NoError(t, writeFile(path, data)).Required()

	src, err := audio.OpenFile(path)
	gt.NoError(t, err).Required()
	defer src.Close()

	gt.Value(t, src.SampleRate()).Equal(16000)
	gt.Value(t, readAll(t, src)).Equal(samples)
}

func TestEncodeWAVRejectsInvalidInput(t *testing.T) {
	_, err := audio.EncodeWAV(nil, 16000)
	gt.Value(t, err).NotNil()

	_, err = audio.EncodeWAV(rampSamples(10), 0)
	gt.Value(t, err).NotNil()
}

func TestOpenFileRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	gt.NoError(t, writeFile(path, bytes.Repeat([]byte{0xAB}, 128))).Required()

	_, err := audio.OpenFile(path)
	gt.Value(t, err).NotNil()
}

func TestSessionWriterProducesReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.wav")
	w, err := audio.NewSessionWriter(path, 16000)
	gt.NoError(t, err).Required()

	first := rampSamples(1600)
	second := rampSamples(800)
	gt.NoError(t, w.Append(first)).Required()
	gt.NoError(t, w.Append(second)).Required()
	gt.NoError(t, w.Close()).Required()

	src, err := audio.OpenFile(path)
	gt.NoError(t, err).Required()
	defer src.Close()

	got := readAll(t, src)
	gt.Value(t, got).Equal(append(append([]int16{}, first...), second...))
}

func TestReaderSourceReadsPCMStream(t *testing.T) {
	samples := rampSamples(2000)
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	// Trailing odd byte must be dropped, not misaligned
	raw = append(raw, 0x7F)

	src, err := audio.NewReaderSource(bytes.NewReader(raw), 16000)
	gt.NoError(t, err).Required()
	gt.Value(t, src.SampleRate()).Equal(16000)

	var got []int16
	for {
		block, rerr := src.ReadBlock(context.Background())
		if rerr == io.EOF {
			break
		}
		gt.NoError(t, rerr).Required()
		got = append(got, block...)
	}
	gt.Value(t, got).Equal(samples)
}

func TestReaderSourceRejectsBadRate(t *testing.T) {
	_, err := audio.NewReaderSource(bytes.NewReader(nil), 0)
	gt.Value(t, err).NotNil()
}

// scriptedSource emits fixed blocks then ends
type scriptedSource struct {
	rate   int
	blocks [][]int16
	pos    int
}

func (s *scriptedSource) SampleRate() int { return s.rate }

func (s *scriptedSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.blocks) {
		return nil, io.EOF
	}
	b := s.blocks[s.pos]
	s.pos++
	return b, nil
}

func (s *scriptedSource) Close() error { return nil }

func TestProducerEmitsGaplessChunks(t *testing.T) {
	const rate = 16000
	chunkDuration := 100 * time.Millisecond
	chunkSamples := int(chunkDuration.Seconds() * rate)

	// Two and a half chunks of audio in quarter-chunk blocks
	blocks := make([][]int16, 10)
	for i := range blocks {
		blocks[i] = rampSamples(chunkSamples / 4)
	}
	source := &scriptedSource{rate: rate, blocks: blocks}
	producer := audio.NewProducer(source, audio.WithChunkDuration(chunkDuration))

	done := make(chan error, 1)
	go func() { done <- producer.Run(context.Background()) }()

	var indices []int
	var finals []bool
	total := 0
	for chunk := range producer.Chunks() {
		indices = append(indices, chunk.Index)
		finals = append(finals, chunk.Final)
		total += len(chunk.Samples)
		gt.Value(t, chunk.SampleRate).Equal(rate)
	}
	gt.NoError(t, <-done).Required()

	gt.Value(t, indices).Equal([]int{0, 1, 2})
	gt.Value(t, finals).Equal([]bool{false, false, true})
	gt.Value(t, total).Equal(chunkSamples*2 + chunkSamples/2)
}

// cancellingSource delivers its blocks and then reports a cancelled read,
// the shape a stopped capture produces
type cancellingSource struct {
	scriptedSource
}

func (s *cancellingSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if s.pos >= len(s.blocks) {
		return nil, context.Canceled
	}
	return s.scriptedSource.ReadBlock(ctx)
}

func TestProducerEmitsFinalPartialOnCancel(t *testing.T) {
	const rate = 16000
	source := &cancellingSource{scriptedSource{
		rate:   rate,
		blocks: [][]int16{rampSamples(100)},
	}}
	producer := audio.NewProducer(source, audio.WithChunkDuration(time.Hour))

	done := make(chan error, 1)
	go func() { done <- producer.Run(context.Background()) }()

	var chunks int
	for chunk := range producer.Chunks() {
		chunks++
		gt.Value(t, chunk.Final).Equal(true)
		gt.Array(t, chunk.Samples).Length(100)
	}
	gt.NoError(t, <-done).Required()
	gt.Value(t, chunks).Equal(1)
}

// failingSource reports an unrecoverable device error after its blocks
type failingSource struct {
	scriptedSource
}

func (s *failingSource) ReadBlock(ctx context.Context) ([]int16, error) {
	if s.pos >= len(s.blocks) {
		return nil, errors.New("device lost")
	}
	return s.scriptedSource.ReadBlock(ctx)
}

func TestProducerReturnsCaptureFailure(t *testing.T) {
	source := &failingSource{scriptedSource{rate: 16000}}
	producer := audio.NewProducer(source)

	done := make(chan error, 1)
	go func() { done <- producer.Run(context.Background()) }()
	for range producer.Chunks() {
	}
	gt.Value(t, <-done).NotNil()
}

func TestProducerTeeWritesSessionRecording(t *testing.T) {
	const rate = 16000
	path := filepath.Join(t.TempDir(), "tee.wav")
	writer, err := audio.NewSessionWriter(path, rate)
	gt.NoError(t, err).Required()

	samples := rampSamples(3200)
	source := &scriptedSource{rate: rate, blocks: [][]int16{samples}}
	producer := audio.NewProducer(source,
		audio.WithChunkDuration(100*time.Millisecond),
		audio.WithSessionWriter(writer),
	)

	done := make(chan error, 1)
	go func() { done <- producer.Run(context.Background()) }()
	for range producer.Chunks() {
	}
	gt.NoError(t, <-done).Required()
	gt.Value(t, producer.TeeFailed()).Equal(false)

	src, err := audio.OpenFile(path)
	gt.NoError(t, err).Required()
	defer src.Close()
	gt.Value(t, readAll(t, src)).Equal(samples)
}
