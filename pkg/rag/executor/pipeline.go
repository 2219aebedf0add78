package executor

import (
	"context"
	"log"
	"time"

	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/rag/answer"
	"ai-rag-be/pkg/rag/arbiter"
	"ai-rag-be/pkg/rag/compress"
	"ai-rag-be/pkg/rag/conflict"
	"ai-rag-be/pkg/rag/enhance"
	"ai-rag-be/pkg/rag/rerank"
	"ai-rag-be/pkg/rag/router"
	"ai-rag-be/pkg/rag/search"
	"ai-rag-be/pkg/store"
	"ai-rag-be/pkg/vector"
)

// Request is one orchestrated query. History and ConversationContext
// are loaded by the caller; the pipeline itself never touches session
// storage.
type Request struct {
	Query               string
	Collections         []string // explicit collections bypass routing
	Limit               int
	ScoreThreshold      float64
	History             []llm.Message
	ConversationContext string
}

// Config carries the pipeline tuning knobs.
type Config struct {
	TimeWeight         float64
	ContextTokenBudget int
	CallTimeout        time.Duration
}

// Pipeline is the query orchestrator: routing, retrieval, reranking,
// compression, arbitration, conflict resolution and synthesis, with a
// fallback ladder that guarantees a valid result on every path.
type Pipeline struct {
	router      *router.CollectionRouter
	enhancer    *enhance.Enhancer
	retriever   *search.ConcurrentRetriever
	compressor  *compress.Compressor
	arbiter     *arbiter.Arbiter
	conflicts   *conflict.Resolver
	synthesizer *answer.Synthesizer
	vectors     vector.Store
	cfg         Config
	logger      *log.Logger
	now         func() time.Time
}

func NewPipeline(
	collectionRouter *router.CollectionRouter,
	enhancer *enhance.Enhancer,
	retriever *search.ConcurrentRetriever,
	compressor *compress.Compressor,
	relevanceArbiter *arbiter.Arbiter,
	conflictResolver *conflict.Resolver,
	synthesizer *answer.Synthesizer,
	vectors vector.Store,
	cfg Config,
	logger *log.Logger,
) *Pipeline {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Pipeline{
		router:      collectionRouter,
		enhancer:    enhancer,
		retriever:   retriever,
		compressor:  compressor,
		arbiter:     relevanceArbiter,
		conflicts:   conflictResolver,
		synthesizer: synthesizer,
		vectors:     vectors,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Execute runs the full pipeline. It never returns an error: every
// failure mode degrades to a knowledge answer or, at the very end, the
// apology message.
func (p *Pipeline) Execute(ctx context.Context, req Request) *store.RAGResult {
	routes, err := p.resolveRoutes(ctx, req)
	if err != nil {
		p.logger.Printf("[PIPELINE] Routing failed: %v", err)
		return p.answerWithoutContext(ctx, req, store.ReasonRetrievalFailed)
	}
	if len(routes) == 0 {
		p.logger.Printf("[PIPELINE] No collections matched the query")
		return p.answerWithoutContext(ctx, req, store.ReasonNoContextsFound)
	}

	searchQuery, filter := p.enhanceQuery(ctx, req.Query)

	docs, err := p.retrieve(ctx, searchQuery, routes, req.Limit, filter)
	if err != nil {
		p.logger.Printf("[PIPELINE] Retrieval failed: %v", err)
		return p.answerWithoutContext(ctx, req, store.ReasonRetrievalFailed)
	}
	if len(docs) == 0 {
		return p.answerWithoutContext(ctx, req, store.ReasonNoContextsFound)
	}

	docs = rerank.Rerank(docs, p.cfg.TimeWeight, p.now().Unix())

	docs = p.compress(ctx, req.Query, docs)
	if len(docs) == 0 {
		return p.answerWithoutContext(ctx, req, store.ReasonNoContextsFound)
	}

	verdict := p.judge(ctx, req, docs)
	if !verdict.Relevant {
		return p.answerWithoutContext(ctx, req, store.ReasonNotRelevant)
	}
	docs = verdict.Documents

	docs, conflictApplied := p.resolveConflicts(ctx, docs)

	// Second, gentler recency pass: conflict resolution may have changed
	// the candidate set.
	docs = rerank.Rerank(docs, p.cfg.TimeWeight/2, p.now().Unix())

	contextStr := compress.BuildContext(docs, p.cfg.ContextTokenBudget)

	callCtx, cancel := p.callContext(ctx)
	resp := p.synthesizer.Grounded(callCtx, req.Query, contextStr, req.History)
	cancel()

	result := &store.RAGResult{
		Answer:                    resp.Answer,
		Summary:                   resp.Summary,
		UsedContext:               resp.UsedContext,
		ConflictResolutionApplied: conflictApplied,
	}
	if resp.Failed {
		result.Reason = store.ReasonGenerationFailed
		result.ContextSources = []store.ContextSource{store.NewReasonSource(result.Reason)}
		return result
	}
	if resp.UsedContext {
		result.ContextSources = make([]store.ContextSource, 0, len(docs))
		for _, doc := range docs {
			result.ContextSources = append(result.ContextSources, store.NewContextSource(doc))
		}
	} else {
		// Grounded generation fell back to knowledge mode.
		result.Reason = store.ReasonGenerationFailed
		result.ContextSources = []store.ContextSource{store.NewReasonSource(result.Reason)}
	}
	return result
}

func (p *Pipeline) resolveRoutes(ctx context.Context, req Request) ([]store.CollectionScore, error) {
	if len(req.Collections) > 0 {
		routes := make([]store.CollectionScore, 0, len(req.Collections))
		for _, name := range req.Collections {
			routes = append(routes, store.CollectionScore{Collection: name, Confidence: 1.0})
		}
		return routes, nil
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	available, err := p.vectors.ListCollections(callCtx)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, nil
	}

	routes, err := p.router.Route(callCtx, req.Query, available)
	if err == nil && len(routes) > 0 {
		return routes, nil
	}

	// Topic detection found nothing usable. Search everything rather
	// than skipping an index that may still hold the answer.
	if err != nil {
		p.logger.Printf("[PIPELINE] Routing failed, searching all collections: %v", err)
	} else {
		p.logger.Printf("[PIPELINE] No collection matched, searching all %d collections", len(available))
	}
	routes = make([]store.CollectionScore, 0, len(available))
	for _, name := range available {
		routes = append(routes, store.CollectionScore{Collection: name, Confidence: 1.0})
	}
	return routes, nil
}

// enhanceQuery rewrites the query for retrieval and extracts payload
// filters. Never fatal.
func (p *Pipeline) enhanceQuery(ctx context.Context, queryText string) (string, vector.Filter) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.enhancer.Enhance(callCtx, queryText)
}

func (p *Pipeline) retrieve(ctx context.Context, queryText string, routes []store.CollectionScore, limit int, filter vector.Filter) ([]store.Document, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.retriever.Retrieve(callCtx, queryText, routes, limit, filter)
}

func (p *Pipeline) compress(ctx context.Context, queryText string, docs []store.Document) []store.Document {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.compressor.Compress(callCtx, docs, queryText)
}

func (p *Pipeline) judge(ctx context.Context, req Request, docs []store.Document) arbiter.Verdict {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.arbiter.Judge(callCtx, req.Query, docs, req.ConversationContext, req.ScoreThreshold)
}

func (p *Pipeline) resolveConflicts(ctx context.Context, docs []store.Document) ([]store.Document, bool) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.conflicts.Resolve(callCtx, docs)
}

// answerWithoutContext is the shared tail of every fallback path.
func (p *Pipeline) answerWithoutContext(ctx context.Context, req Request, reason string) *store.RAGResult {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	resp := p.synthesizer.Knowledge(callCtx, req.Query, req.History)
	result := &store.RAGResult{
		Answer:      resp.Answer,
		Summary:     resp.Summary,
		UsedContext: false,
		Reason:      reason,
	}
	if resp.Failed {
		result.Reason = store.ReasonGenerationFailed
	}
	result.ContextSources = []store.ContextSource{store.NewReasonSource(result.Reason)}
	return result
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.cfg.CallTimeout)
}
