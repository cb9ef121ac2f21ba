package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/secmon-lab/pilot/pkg/service/audio"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
	"github.com/secmon-lab/pilot/pkg/utils/safe"
)

// Client is the batch transcription provider client. It submits the chunk
// audio as a multipart WAV upload and awaits the final transcript with
// per-span confidence and timing. The provider contract is generic; no
// provider-specific request encoding beyond this.
type Client struct {
	endpoint   string
	apiKey     string
	language   string
	httpClient *http.Client
}

var _ interfaces.BatchTranscriber = &Client{}

// ClientOption is a functional option for Client configuration
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLanguage sets the transcription language hint
func WithLanguage(lang string) ClientOption {
	return func(c *Client) {
		c.language = lang
	}
}

// NewClient creates a batch transcription client
func NewClient(endpoint, apiKey string, opts ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, goerr.New("transcription endpoint is required")
	}

	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		language: "en",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// responseSegment is one span in the provider response
type responseSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// transcriptResponse is the provider response body
type transcriptResponse struct {
	Text       string            `json:"text"`
	Language   string            `json:"language,omitempty"`
	Confidence float64           `json:"confidence"`
	Segments   []responseSegment `json:"segments,omitempty"`
}

// Transcribe submits one chunk and returns the final segment set. Network
// failures, timeouts and provider throttling are tagged transient so the
// retry policy can distinguish them from permanent rejections.
func (c *Client) Transcribe(ctx context.Context, chunk *model.Chunk) ([]model.TranscriptSegment, error) {
	logger := logging.From(ctx)

	wav, err := audio.EncodeWAV(chunk.Samples, chunk.SampleRate)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode chunk audio", goerr.V("chunk", chunk.Index))
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", "chunk.wav")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create multipart form")
	}
	if _, err := part.Write(wav); err != nil {
		return nil, goerr.Wrap(err, "failed to write audio payload")
	}
	if err := writer.WriteField("language", c.language); err != nil {
		return nil, goerr.Wrap(err, "failed to write language field")
	}
	if err := writer.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build transcription request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, goerr.Wrap(err, "transcription request cancelled", goerr.V("chunk", chunk.Index))
		}
		// Anything that failed before an HTTP status is network-level
		return nil, goerr.Wrap(err, "transcription request failed",
			goerr.T(types.ErrTagTransient), goerr.V("chunk", chunk.Index))
	}
	defer safe.Close(ctx, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, goerr.New("transcription provider unavailable",
			goerr.T(types.ErrTagTransient),
			goerr.V("status", resp.StatusCode),
			goerr.V("chunk", chunk.Index))
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("transcription request rejected",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(payload)),
			goerr.V("chunk", chunk.Index))
	}

	var parsed transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to decode transcription response", goerr.V("chunk", chunk.Index))
	}

	segments := toSegments(parsed, chunk.Duration)
	logger.Debug("chunk transcribed",
		"chunk", chunk.Index,
		"segments", len(segments),
		"elapsed", time.Since(start).String(),
	)
	return segments, nil
}

// toSegments normalizes the provider response into the domain segment set.
// Providers without span-level output yield a single whole-chunk segment.
func toSegments(parsed transcriptResponse, chunkDuration time.Duration) []model.TranscriptSegment {
	if len(parsed.Segments) == 0 {
		if parsed.Text == "" {
			return nil
		}
		conf := parsed.Confidence
		if conf == 0 {
			// Providers that omit confidence entirely: treat as fully
			// confident rather than flagging the whole chunk
			conf = 1.0
		}
		return []model.TranscriptSegment{{
			Text:       parsed.Text,
			Start:      0,
			End:        chunkDuration,
			Confidence: conf,
			Source:     types.SourceBatch,
		}}
	}

	segments := make([]model.TranscriptSegment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		if s.Text == "" {
			continue
		}
		segments = append(segments, model.TranscriptSegment{
			Text:       s.Text,
			Start:      time.Duration(s.Start * float64(time.Second)),
			End:        time.Duration(s.End * float64(time.Second)),
			Confidence: s.Confidence,
			Source:     types.SourceBatch,
		})
	}
	return segments
}
