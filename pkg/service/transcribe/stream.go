package transcribe

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

// StreamClient is the low-latency streaming transcription client. The wire
// contract: open a websocket, push binary PCM16 frames, receive JSON
// partial-text events. Output is display-only and best-effort; any failure
// degrades to no live text and never affects the committed transcript.
type StreamClient struct {
	endpoint string
	apiKey   string
	dialer   *websocket.Dialer
}

var _ interfaces.StreamTranscriber = &StreamClient{}

// NewStreamClient creates a streaming transcription client. An empty
// endpoint disables streaming: Open returns a handle that emits nothing.
func NewStreamClient(endpoint, apiKey string) *StreamClient {
	return &StreamClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		dialer:   websocket.DefaultDialer,
	}
}

// partialEvent is one incremental event from the streaming provider
type partialEvent struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Final      bool    `json:"final"`
}

// Open starts a streaming connection for one chunk
func (c *StreamClient) Open(ctx context.Context, sampleRate int) (interfaces.StreamHandle, error) {
	if c.endpoint == "" {
		return newNullHandle(), nil
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	header.Set("X-Sample-Rate", strconv.Itoa(sampleRate))

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open streaming transcription",
			goerr.T(types.ErrTagTransient), goerr.V("endpoint", c.endpoint))
	}

	h := &streamHandle{
		conn:    conn,
		results: make(chan model.TranscriptSegment, 64),
	}
	go h.readLoop(ctx)
	return h, nil
}

type streamHandle struct {
	conn    *websocket.Conn
	results chan model.TranscriptSegment

	closeOnce sync.Once
	closeErr  error
}

func (h *streamHandle) Push(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if err := h.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return goerr.Wrap(err, "failed to push audio frame", goerr.T(types.ErrTagTransient))
	}
	return nil
}

func (h *streamHandle) Results() <-chan model.TranscriptSegment {
	return h.results
}

func (h *streamHandle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.conn.Close()
	})
	return h.closeErr
}

func (h *streamHandle) readLoop(ctx context.Context) {
	defer close(h.results)
	logger := logging.From(ctx)

	for {
		_, payload, err := h.conn.ReadMessage()
		if err != nil {
			// Connection gone: streaming is best-effort, just stop
			logger.Debug("streaming transcription closed", "error", err.Error())
			return
		}

		var ev partialEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Debug("skipping malformed streaming event", "error", err.Error())
			continue
		}
		if ev.Text == "" {
			continue
		}

		seg := model.TranscriptSegment{
			Text:       ev.Text,
			Start:      time.Duration(ev.Start * float64(time.Second)),
			End:        time.Duration(ev.End * float64(time.Second)),
			Confidence: ev.Confidence,
			Source:     types.SourceStreaming,
		}

		select {
		case h.results <- seg:
		default:
			// Consumer fell behind; drop the oldest to keep latency low
			select {
			case <-h.results:
			default:
			}
			select {
			case h.results <- seg:
			default:
			}
		}
	}
}

// nullHandle is returned when streaming is disabled
type nullHandle struct {
	results chan model.TranscriptSegment
}

func newNullHandle() *nullHandle {
	h := &nullHandle{results: make(chan model.TranscriptSegment)}
	close(h.results)
	return h
}

func (h *nullHandle) Push([]int16) error {
	return nil
}

func (h *nullHandle) Results() <-chan model.TranscriptSegment {
	return h.results
}

func (h *nullHandle) Close() error {
	return nil
}
