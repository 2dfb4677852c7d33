package biz

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/internal/chat/metrics"
	"github.com/kart-io/codequery/internal/chat/store"
	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/internal/pkg/chat/textutil"
	"github.com/kart-io/codequery/pkg/errors"
	"github.com/kart-io/codequery/pkg/llm"
	chatopts "github.com/kart-io/codequery/pkg/options/chat"
)

const (
	// sourceRefLimit caps the sources event payload.
	sourceRefLimit = 6
	// sourceContentChars caps each source summary's content.
	sourceContentChars = 240
)

// Stream event types. The ordering sources -> meta? -> content* ->
// done|error is a hard contract for any transport binding.
const (
	EventSources = "sources"
	EventMeta    = "meta"
	EventContent = "content"
	EventDone    = "done"
	EventError   = "error"
)

// Event is one element of a chat stream.
type Event struct {
	Type    string            `json:"type"`
	Sources []model.SourceRef `json:"sources,omitempty"`
	Meta    *MetaPayload      `json:"meta,omitempty"`
	Content string            `json:"content,omitempty"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
}

// MetaPayload describes the retrieval outcome on the optional meta event.
type MetaPayload struct {
	Intent          string                      `json:"intent"`
	Profile         string                      `json:"profile"`
	Grounding       string                      `json:"grounding"`
	RetrievalTimeMS float64                     `json:"retrieval_time_ms"`
	RerankTimeMS    float64                     `json:"rerank_time_ms"`
	Diagnostics     *model.RetrievalDiagnostics `json:"diagnostics,omitempty"`
}

// AskRequest is one chat question against an indexed repository.
type AskRequest struct {
	Repo         string                 `json:"repo"`
	Question     string                 `json:"question"`
	Mode         string                 `json:"mode,omitempty"`
	ContextFiles []string               `json:"context_files,omitempty"`
	History      []model.HistoryMessage `json:"history,omitempty"`
	TopK         int                    `json:"top_k,omitempty"`
	Debug        bool                   `json:"debug,omitempty"`
}

// AskResponse is the non-streaming answer.
type AskResponse struct {
	Answer      string                      `json:"answer"`
	Sources     []model.SourceRef           `json:"sources"`
	Intent      model.Intent                `json:"intent"`
	Profile     string                      `json:"profile"`
	Grounding   string                      `json:"grounding"`
	Diagnostics *model.RetrievalDiagnostics `json:"diagnostics,omitempty"`
}

// Service is the chat pipeline surface consumed by transport bindings.
type Service interface {
	// Ask answers one question without streaming.
	Ask(ctx context.Context, req *AskRequest) (*AskResponse, error)
	// AskStream answers one question as a typed event stream. The channel
	// is closed after the terminal done or error event; the consumer
	// cancels by cancelling ctx.
	AskStream(ctx context.Context, req *AskRequest) <-chan Event
	// Stats returns cache and pipeline counters.
	Stats(ctx context.Context) (map[string]any, error)
}

// ChatService composes admission control, retrieval, and generation.
type ChatService struct {
	admission *AdmissionController
	retriever *Retriever
	generator *Generator
	cache     *PipelineCache
	store     store.VectorStore
	embed     llm.EmbeddingProvider
	chat      llm.ChatProvider
	opts      *chatopts.Options
	metrics   *metrics.ChatMetrics
}

// NewChatService creates the chat service.
func NewChatService(
	admission *AdmissionController,
	retriever *Retriever,
	generator *Generator,
	cache *PipelineCache,
	vectorStore store.VectorStore,
	embed llm.EmbeddingProvider,
	chat llm.ChatProvider,
	opts *chatopts.Options,
) *ChatService {
	return &ChatService{
		admission: admission,
		retriever: retriever,
		generator: generator,
		cache:     cache,
		store:     vectorStore,
		embed:     embed,
		chat:      chat,
		opts:      opts,
		metrics:   metrics.GetChatMetrics(),
	}
}

// Ask answers one question without streaming.
func (s *ChatService) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	permit, err := s.admission.Acquire(ctx, req.Repo)
	if err != nil {
		s.metrics.RecordQuery(err)
		return nil, err
	}
	defer permit.Release()
	ctx = permit.Context()

	retrieval, err := s.retrieve(ctx, req)
	if err != nil {
		s.metrics.RecordQuery(err)
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, req.Repo, req.Question, retrieval, req.History)
	if err != nil {
		err = s.admission.WrapTimeout(err)
		if errors.GetCode(err) != errors.ErrRequestTimeout.Code {
			err = errors.ErrGeneration.WithCause(err)
		}
		s.metrics.RecordQuery(err)
		return nil, err
	}

	s.metrics.RecordQuery(nil)
	resp := &AskResponse{
		Answer:    answer,
		Sources:   sourceRefs(retrieval.Chunks),
		Intent:    retrieval.Intent,
		Profile:   retrieval.Profile,
		Grounding: retrieval.Diagnostics.Grounding,
	}
	if req.Debug {
		diag := retrieval.Diagnostics
		resp.Diagnostics = &diag
	}
	return resp, nil
}

// AskStream answers one question as a typed event stream.
func (s *ChatService) AskStream(ctx context.Context, req *AskRequest) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		if err := s.validate(req); err != nil {
			s.metrics.RecordQuery(err)
			s.send(ctx, out, errorEvent(err))
			return
		}

		permit, err := s.admission.Acquire(ctx, req.Repo)
		if err != nil {
			s.metrics.RecordQuery(err)
			s.send(ctx, out, errorEvent(err))
			return
		}
		defer permit.Release()
		reqCtx := permit.Context()

		retrieval, err := s.retrieve(reqCtx, req)
		if err != nil {
			s.metrics.RecordQuery(err)
			s.send(ctx, out, errorEvent(err))
			return
		}

		if !s.send(ctx, out, Event{Type: EventSources, Sources: sourceRefs(retrieval.Chunks)}) {
			return
		}
		if s.opts.EmitMetaEvent {
			meta := &MetaPayload{
				Intent:          string(retrieval.Intent),
				Profile:         retrieval.Profile,
				Grounding:       retrieval.Diagnostics.Grounding,
				RetrievalTimeMS: retrieval.Diagnostics.RetrievalTimeMS,
				RerankTimeMS:    retrieval.Diagnostics.RerankTimeMS,
			}
			if req.Debug {
				diag := retrieval.Diagnostics
				meta.Diagnostics = &diag
			}
			if !s.send(ctx, out, Event{Type: EventMeta, Meta: meta}) {
				return
			}
		}

		for fragment := range s.generator.GenerateStream(reqCtx, req.Repo, req.Question, retrieval, req.History) {
			if fragment.Err != nil {
				// A cancelled consumer is not a generation failure; the
				// client went away, so there is nobody to report to.
				if stderrors.Is(fragment.Err, context.Canceled) && ctx.Err() != nil {
					return
				}
				err := s.admission.WrapTimeout(fragment.Err)
				if errors.GetCode(err) != errors.ErrRequestTimeout.Code {
					err = errors.ErrGeneration.WithCause(err)
				}
				s.metrics.RecordQuery(err)
				s.metrics.RecordStreamError()
				s.send(ctx, out, errorEvent(err))
				return
			}
			if !s.send(ctx, out, Event{Type: EventContent, Content: fragment.Content}) {
				return
			}
		}

		s.metrics.RecordQuery(nil)
		s.send(ctx, out, Event{Type: EventDone})
	}()
	return out
}

// Stats returns cache and pipeline counters plus provider identities.
func (s *ChatService) Stats(ctx context.Context) (map[string]any, error) {
	return map[string]any{
		"collection":     s.opts.Collection,
		"embed_provider": s.embed.Name(),
		"chat_provider":  s.chat.Name(),
		"cache":          s.cache.Stats(),
		"metrics":        s.metrics.Stats(),
	}, nil
}

// retrieve checks that the repository is indexed and runs retrieval,
// mapping deadline expiry to the stable timeout error.
func (s *ChatService) retrieve(ctx context.Context, req *AskRequest) (*model.RetrievalResult, error) {
	collection := CollectionForRepo(s.opts.Collection, req.Repo)
	exists, err := s.store.HasCollection(ctx, collection)
	if err != nil {
		return nil, errors.ErrVectorStore.WithCause(err)
	}
	if !exists {
		return nil, errors.ErrRepoNotIndexed.WithMessagef("repository %q is not indexed", req.Repo)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}

	retrieval, err := s.retriever.Retrieve(ctx, req.Repo, req.Question, topK, req.Mode, req.ContextFiles)
	if err != nil {
		return nil, s.admission.WrapTimeout(err)
	}
	return retrieval, nil
}

// validate rejects malformed requests before admission.
func (s *ChatService) validate(req *AskRequest) error {
	if req == nil || strings.TrimSpace(req.Question) == "" {
		return errors.ErrInvalidParam.WithMessage("question is required")
	}
	if req.Repo == "" {
		return errors.ErrInvalidParam.WithMessage("repo is required")
	}
	return nil
}

// send delivers one event unless the consumer cancelled.
func (s *ChatService) send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		logger.Debugw("chat stream consumer cancelled", "event", ev.Type)
		return false
	}
}

// errorEvent converts an error into the terminal error event, carrying the
// stable machine-readable code distinct from the message.
func errorEvent(err error) Event {
	return Event{
		Type:    EventError,
		Code:    errors.Reason(err),
		Message: errors.FromError(err).Message,
	}
}

// sourceRefs summarizes the selected chunks for the sources event.
func sourceRefs(chunks []model.Chunk) []model.SourceRef {
	n := len(chunks)
	if n > sourceRefLimit {
		n = sourceRefLimit
	}
	refs := make([]model.SourceRef, 0, n)
	for _, c := range chunks[:n] {
		refs = append(refs, model.SourceRef{
			File:      c.FilePath,
			Content:   textutil.Truncate(c.Content, sourceContentChars),
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Score:     c.Score,
		})
	}
	return refs
}

var _ Service = (*ChatService)(nil)
