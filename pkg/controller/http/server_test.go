package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/pilot/pkg/controller/http"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	memrepo "github.com/secmon-lab/pilot/pkg/repository/memory"
	"github.com/secmon-lab/pilot/pkg/usecase"
)

func newUseCases() *usecase.UseCases {
	return usecase.New(memrepo.New(), nil, nil)
}

func TestSessionEndpointWithoutRecorder(t *testing.T) {
	server := httpctrl.New(newUseCases())

	for _, path := range []string{"/api/session", "/api/transcript"} {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	}

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stop", nil))
	gt.Value(t, rec.Code).Equal(http.StatusNotFound)
}

func TestSessionEndpoint(t *testing.T) {
	uc := newUseCases()
	recorder := uc.NewRecorder(model.Identity{Name: "Sam"})
	server := httpctrl.New(uc, httpctrl.WithRecorder(recorder))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Chunks int    `json:"chunks_committed"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Value(t, resp.ID != "").Equal(true)
	gt.Value(t, resp.Status).Equal("IDLE")
	gt.Value(t, resp.Chunks).Equal(0)
}

func TestTranscriptEndpoint(t *testing.T) {
	uc := newUseCases()
	recorder := uc.NewRecorder(model.Identity{})
	server := httpctrl.New(uc, httpctrl.WithRecorder(recorder))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transcript", nil))
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Transcript string          `json:"transcript"`
		Chunks     json.RawMessage `json:"chunks"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Value(t, resp.Transcript).Equal("")
}

func TestQueryEndpoint(t *testing.T) {
	uc := newUseCases()
	_, err := uc.Ingest(context.Background(), "notes/deploy.md", "Deploy runbook", "deploy steps for the api")
	gt.NoError(t, err).Required()

	server := httpctrl.New(uc)

	body, _ := json.Marshal(map[string]any{"query": "deploy the api", "scope": "documents"})
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewReader(body)))
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Results []struct {
			Kind  string `json:"kind"`
			Title string `json:"title"`
		} `json:"results"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Array(t, resp.Results).Length(1)
	gt.Value(t, resp.Results[0].Title).Equal("Deploy runbook")
	gt.Value(t, resp.Results[0].Kind).Equal("document")
}

func TestQueryEndpointRejectsBadRequests(t *testing.T) {
	server := httpctrl.New(newUseCases())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader("not json")))
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"query": ""}`)))
	gt.Value(t, rec.Code).Equal(http.StatusInternalServerError)
}

func TestStopEndpoint(t *testing.T) {
	uc := newUseCases()
	recorder := uc.NewRecorder(model.Identity{})
	server := httpctrl.New(uc, httpctrl.WithRecorder(recorder))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stop", nil))
	gt.Value(t, rec.Code).Equal(http.StatusAccepted)
}

func TestEventsWebsocket(t *testing.T) {
	uc := newUseCases()
	recorder := uc.NewRecorder(model.Identity{})
	server := httptest.NewServer(httpctrl.New(uc, httpctrl.WithRecorder(recorder)))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	gt.NoError(t, err).Required()
	defer conn.Close()

	// Give the handler a moment to subscribe before publishing
	time.Sleep(100 * time.Millisecond)

	recorder.Feed().Publish(model.SessionEvent{
		Type:       model.EventChunkCommitted,
		SessionID:  "20260830-100000",
		ChunkIndex: 2,
		Text:       "committed text",
	})

	gt.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second))).Required()
	var msg struct {
		Type       string `json:"type"`
		SessionID  string `json:"session_id"`
		ChunkIndex int    `json:"chunk_index"`
		Text       string `json:"text"`
	}
	gt.NoError(t, conn.ReadJSON(&msg)).Required()
	gt.Value(t, msg.Type).Equal("chunk_committed")
	gt.Value(t, msg.SessionID).Equal("20260830-100000")
	gt.Value(t, msg.ChunkIndex).Equal(2)
	gt.Value(t, msg.Text).Equal("committed text")

	// Closing the feed ends the stream with a normal close
	recorder.Feed().Close()
	_, _, rerr := conn.ReadMessage()
	gt.Value(t, websocket.IsCloseError(rerr, websocket.CloseNormalClosure)).Equal(true)
}

func TestEventsWebsocketWithoutRecorder(t *testing.T) {
	server := httptest.NewServer(httpctrl.New(newUseCases()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	gt.Value(t, err).NotNil()
	gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
}
