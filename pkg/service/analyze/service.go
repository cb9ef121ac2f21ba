package analyze

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/pilot/pkg/domain/interfaces"
	"github.com/secmon-lab/pilot/pkg/domain/model"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

//go:embed prompt/analyze_system.md
var analyzeSystemPromptTmpl string

//go:embed prompt/cleanup_system.md
var cleanupSystemPrompt string

//go:embed prompt/deep_system.md
var deepSystemPromptTmpl string

var (
	analyzeSystemPrompt = template.Must(template.New("analyze_system").Parse(analyzeSystemPromptTmpl))
	deepSystemPrompt    = template.Must(template.New("deep_system").Parse(deepSystemPromptTmpl))
)

// dedupeSimilarity is the token-overlap ratio above which a candidate item
// is treated as a duplicate of a prior one. Dedupe is best-effort.
const dedupeSimilarity = 0.8

// Service implements the text-generation collaborator boundary on top of a
// gollem LLM client: per-chunk extraction, cleanup, deep analysis and
// embeddings.
type Service struct {
	llmClient     gollem.LLMClient
	systemContext string
}

var _ interfaces.Analyzer = &Service{}

// Option is a functional option for Service configuration
type Option func(*Service)

// WithSystemContext injects the user-provided assistant context (key
// people, product, focus areas) into all analysis prompts.
func WithSystemContext(s string) Option {
	return func(svc *Service) {
		svc.systemContext = s
	}
}

// New creates an analysis service with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	svc := &Service{llmClient: llmClient}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type promptData struct {
	SystemContext string
}

func (s *Service) renderSystemPrompt(tmpl *template.Template) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{SystemContext: s.systemContext}); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return buf.String(), nil
}

// llmChunkResponse mirrors the chunk analysis response schema
type llmChunkResponse struct {
	ActionItems []struct {
		Item       string `json:"item"`
		Assignee   string `json:"assignee"`
		Deadline   string `json:"deadline"`
		Confidence string `json:"confidence"`
	} `json:"action_items"`
	Decisions []struct {
		Decision   string `json:"decision"`
		Confidence string `json:"confidence"`
	} `json:"decisions"`
	Clarifications []string `json:"clarifications"`
	KeyPoints      []string `json:"key_points"`
	Participants   []string `json:"participants"`
}

// AnalyzeChunk extracts action items, decisions and clarifications from one
// chunk of cleaned transcript text.
func (s *Service) AnalyzeChunk(ctx context.Context, req interfaces.ChunkAnalysisRequest) (*model.ChunkAnalysis, error) {
	if strings.TrimSpace(req.Text) == "" {
		return &model.ChunkAnalysis{}, nil
	}

	systemPrompt, err := s.renderSystemPrompt(analyzeSystemPrompt)
	if err != nil {
		return nil, err
	}

	session, err := s.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(chunkResponseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session", goerr.T(types.ErrTagTransient))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildChunkPrompt(req)))
	if err != nil {
		return nil, goerr.Wrap(err, "chunk analysis failed",
			goerr.T(types.ErrTagTransient), goerr.V("chunk", req.ChunkIndex))
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("empty analysis response", goerr.V("chunk", req.ChunkIndex))
	}

	var parsed llmChunkResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse analysis response",
			goerr.V("chunk", req.ChunkIndex), goerr.V("response", resp.Texts[0]))
	}

	return s.toAnalysis(ctx, parsed, req), nil
}

func (s *Service) toAnalysis(ctx context.Context, parsed llmChunkResponse, req interfaces.ChunkAnalysisRequest) *model.ChunkAnalysis {
	logger := logging.From(ctx)
	result := &model.ChunkAnalysis{
		KeyPoints:    parsed.KeyPoints,
		Participants: parsed.Participants,
	}

	for _, ai := range parsed.ActionItems {
		if ai.Item == "" {
			continue
		}
		if dup, prior := isDuplicate(ai.Item, req.PriorItems); dup {
			logger.Debug("dropping duplicate action item",
				"chunk", req.ChunkIndex, "item", ai.Item, "prior", prior)
			continue
		}
		result.ActionItems = append(result.ActionItems, &model.ActionItem{
			ID:             model.NewItemID(),
			Description:    ai.Item,
			Assignee:       ai.Assignee,
			AssignedToUser: req.Identity.Matches(ai.Assignee),
			DueDate:        ai.Deadline,
			Confidence:     types.ConfidenceLevel(ai.Confidence).Normalize(),
			ChunkIndex:     req.ChunkIndex,
		})
	}

	for _, d := range parsed.Decisions {
		if d.Decision == "" {
			continue
		}
		result.Decisions = append(result.Decisions, &model.Decision{
			ID:          model.NewItemID(),
			Description: d.Decision,
			Confidence:  types.ConfidenceLevel(d.Confidence).Normalize(),
			ChunkIndex:  req.ChunkIndex,
		})
	}

	for _, c := range parsed.Clarifications {
		if c == "" {
			continue
		}
		result.Clarifications = append(result.Clarifications, &model.Clarification{
			ID:          model.NewItemID(),
			Description: c,
			Confidence:  types.ConfidenceLow,
			ChunkIndex:  req.ChunkIndex,
		})
	}

	return result
}

// CleanTranscript corrects ASR artifacts in one chunk of annotated text.
// Footnote anchors must survive; if the model dropped any, the original
// text is returned so anchor positions stay intact.
func (s *Service) CleanTranscript(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	session, err := s.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(cleanupSystemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session", goerr.T(types.ErrTagTransient))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(text))
	if err != nil {
		return "", goerr.Wrap(err, "cleanup pass failed", goerr.T(types.ErrTagTransient))
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("empty cleanup response")
	}

	cleaned := strings.TrimSpace(resp.Texts[0])
	if !anchorsPreserved(text, cleaned) {
		logging.From(ctx).Warn("cleanup pass altered footnote anchors, keeping original text")
		return text, nil
	}
	return cleaned, nil
}

// llmDeepResponse mirrors the deep analysis response schema
type llmDeepResponse struct {
	Synopsis   string   `json:"synopsis"`
	Milestones []string `json:"milestones"`
}

// Summarize runs the finalize-time deep analysis over the assembled session
func (s *Service) Summarize(ctx context.Context, session *model.Session) (*model.DeepAnalysis, error) {
	systemPrompt, err := s.renderSystemPrompt(deepSystemPrompt)
	if err != nil {
		return nil, err
	}

	llmSession, err := s.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(deepResponseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session", goerr.T(types.ErrTagTransient))
	}

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(buildDeepPrompt(session)))
	if err != nil {
		return nil, goerr.Wrap(err, "deep analysis failed", goerr.T(types.ErrTagTransient))
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("empty deep analysis response")
	}

	var parsed llmDeepResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse deep analysis response",
			goerr.V("response", resp.Texts[0]))
	}

	return &model.DeepAnalysis{
		Synopsis:   parsed.Synopsis,
		Milestones: parsed.Milestones,
	}, nil
}

// Embed generates an embedding vector for memory retrieval
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding", goerr.T(types.ErrTagTransient))
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}
	return result, nil
}

func buildChunkPrompt(req interfaces.ChunkAnalysisRequest) string {
	var sb strings.Builder

	if req.HistoryContext != "" {
		sb.WriteString("## Historical context\n\n")
		sb.WriteString(req.HistoryContext)
		sb.WriteString("\n\n")
	}

	if len(req.RecentChunks) > 0 {
		sb.WriteString("## Recent discussion\n\n")
		for _, c := range req.RecentChunks {
			fmt.Fprintf(&sb, "- %s\n", truncate(c, 200))
		}
		sb.WriteString("\n")
	}

	if len(req.PriorItems) > 0 {
		sb.WriteString("## Prior action items (do not repeat)\n\n")
		for _, item := range req.PriorItems {
			fmt.Fprintf(&sb, "- %s\n", item.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## New transcript segment\n\n")
	sb.WriteString(req.Text)
	sb.WriteString("\n")

	return sb.String()
}

func buildDeepPrompt(session *model.Session) string {
	var sb strings.Builder

	sb.WriteString("## Full transcript\n\n")
	sb.WriteString(session.Transcript())
	sb.WriteString("\n\n")

	if len(session.ActionItems) > 0 {
		sb.WriteString("## Action items\n\n")
		for _, item := range session.ActionItems {
			fmt.Fprintf(&sb, "- %s", item.Description)
			if item.Assignee != "" {
				fmt.Fprintf(&sb, " (assignee: %s)", item.Assignee)
			}
			if item.DueDate != "" {
				fmt.Fprintf(&sb, " (due: %s)", item.DueDate)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(session.Decisions) > 0 {
		sb.WriteString("## Decisions\n\n")
		for _, d := range session.Decisions {
			fmt.Fprintf(&sb, "- %s\n", d.Description)
		}
		sb.WriteString("\n")
	}

	if len(session.Clarifications) > 0 {
		sb.WriteString("## Open questions\n\n")
		for _, c := range session.Clarifications {
			fmt.Fprintf(&sb, "- %s\n", c.Description)
		}
		sb.WriteString("\n")
	}

	if gaps := session.GapChunks(); len(gaps) > 0 {
		fmt.Fprintf(&sb, "## Note\n\n%d transcript segment(s) are unavailable due to transcription failures.\n", len(gaps))
	}

	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
