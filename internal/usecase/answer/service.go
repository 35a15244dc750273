package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/qacache/internal/domain"
	domanswer "github.com/kailas-cloud/qacache/internal/domain/answer"
	"github.com/kailas-cloud/qacache/internal/domain/candidate"
	domquestion "github.com/kailas-cloud/qacache/internal/domain/question"
	"github.com/kailas-cloud/qacache/internal/domain/resolution"
	"github.com/kailas-cloud/qacache/internal/logger"
)

// Deps groups the pipeline collaborators. FastCache, Curated and Prior may be nil.
type Deps struct {
	FastCache FastCache
	Store     QuestionStore
	Curated   CuratedSearcher
	Prior     PriorAnswerSearcher
	Embedder  Embedder
	Generator Generator
}

// Service routes a question through the answering tiers.
// All fields are read-only after New; one Service serves concurrent requests.
type Service struct {
	deps     Deps
	policy   domain.Policy
	observer Observer
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the fallback logger used when the request context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates the resolution pipeline. Store, Embedder and Generator are required.
func New(deps Deps, policy domain.Policy, opts ...Option) (*Service, error) {
	if deps.Store == nil || deps.Embedder == nil || deps.Generator == nil {
		return nil, errors.New("answer: store, embedder and generator are required")
	}
	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	s := &Service{
		deps:     deps,
		policy:   policy,
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Policy returns the effective policy.
func (s *Service) Policy() domain.Policy { return s.policy }

// request carries per-call state between tiers.
type request struct {
	text        string
	fingerprint string
	log         *zap.Logger

	existing *domquestion.Question
	vector   []float32
}

// Resolve answers a raw question.
// Only ErrInvalidInput, ErrRateLimited, ErrGenerationFailed and context errors are returned.
func (s *Service) Resolve(ctx context.Context, raw string) (resolution.Resolution, error) {
	start := time.Now()

	text := domquestion.Normalize(raw)
	if text == "" {
		return resolution.Resolution{}, fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)
	}

	fp := domquestion.Fingerprint(text)
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("fingerprint", fp))
	req := &request{text: text, fingerprint: fp, log: log}

	res, err := s.resolve(ctx, req)
	if err != nil {
		return resolution.Resolution{}, err
	}

	s.observer.Resolved(res.Source(), time.Since(start))
	req.log.Debug("question resolved", zap.Stringer("source", res), zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (s *Service) resolve(ctx context.Context, req *request) (resolution.Resolution, error) {
	if res, ok, err := s.lookupFastCache(ctx, req); err != nil || ok {
		return res, err
	}
	if res, ok, err := s.lookupDurable(ctx, req); err != nil || ok {
		return res, err
	}

	if err := s.embedQuestion(ctx, req); err != nil {
		return resolution.Resolution{}, err
	}

	var refs []candidate.Candidate
	if len(req.vector) > 0 {
		curated, err := s.searchCurated(ctx, req)
		if err != nil {
			return resolution.Resolution{}, err
		}
		if len(curated) > 0 && curated[0].Score() >= s.policy.GoldThreshold {
			top := curated[0]
			return resolution.NewWithSimilarity(top.Answer(), resolution.CuratedMatch, top.Score()), nil
		}

		if res, ok, err := s.matchPrior(ctx, req); err != nil || ok {
			return res, err
		}

		refs = candidate.AtLeast(curated, s.policy.ContextThreshold)
	}

	text, model, err := s.generate(ctx, req, refs)
	if err != nil {
		return resolution.Resolution{}, err
	}

	s.persist(ctx, req, text, model)
	s.writeCache(ctx, req, text)

	if len(refs) > 0 {
		return resolution.New(text, resolution.RAG), nil
	}
	return resolution.New(text, resolution.AI), nil
}

func (s *Service) lookupFastCache(ctx context.Context, req *request) (resolution.Resolution, bool, error) {
	if s.deps.FastCache == nil {
		return resolution.Resolution{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return resolution.Resolution{}, false, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.policy.CacheTimeout)
	defer cancel()

	answer, err := s.deps.FastCache.Get(cctx, req.fingerprint)
	switch {
	case err == nil && answer != "":
		return resolution.New(answer, resolution.FastCache), true, nil
	case err == nil, errors.Is(err, domain.ErrNotFound):
		return resolution.Resolution{}, false, nil
	}
	if ctx.Err() != nil {
		return resolution.Resolution{}, false, ctx.Err()
	}
	s.degrade(req, TierFastCache, err)
	return resolution.Resolution{}, false, nil
}

func (s *Service) lookupDurable(ctx context.Context, req *request) (resolution.Resolution, bool, error) {
	if err := ctx.Err(); err != nil {
		return resolution.Resolution{}, false, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()

	q, err := s.deps.Store.FindByFingerprint(sctx, req.fingerprint)
	if err != nil {
		return resolution.Resolution{}, false, s.storeMiss(ctx, req, err)
	}

	a, err := s.deps.Store.FindAnswer(sctx, q.ID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			req.existing = &q
		}
		return resolution.Resolution{}, false, s.storeMiss(ctx, req, err)
	}

	s.writeCache(ctx, req, a.Text())
	return resolution.New(a.Text(), resolution.DurableCache), true, nil
}

// storeMiss reports a durable lookup failure; only a cancelled request is fatal.
func (s *Service) storeMiss(ctx context.Context, req *request, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.degrade(req, TierDurableStore, err)
	return nil
}

func (s *Service) embedQuestion(ctx context.Context, req *request) error {
	if req.existing != nil && req.existing.HasEmbedding() {
		req.vector = req.existing.Embedding()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ectx, cancel := context.WithTimeout(ctx, s.policy.EmbedTimeout)
	defer cancel()

	res, err := s.deps.Embedder.Embed(ectx, req.text)
	if err == nil && len(res.Embedding) == 0 {
		err = fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.degrade(req, TierEmbedding, err)
		return nil
	}
	req.vector = res.Embedding
	return nil
}

// searchCurated returns curated candidates above the context threshold, best first.
func (s *Service) searchCurated(ctx context.Context, req *request) ([]candidate.Candidate, error) {
	if s.deps.Curated == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ictx, cancel := context.WithTimeout(ctx, s.policy.IndexTimeout)
	defer cancel()

	cs, err := s.deps.Curated.SearchCurated(ictx, req.vector, s.policy.ContextThreshold, s.policy.CuratedTopK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.degrade(req, TierCurated, err)
		return nil, nil
	}
	return candidate.Ranked(cs), nil
}

func (s *Service) matchPrior(ctx context.Context, req *request) (resolution.Resolution, bool, error) {
	if s.deps.Prior == nil {
		return resolution.Resolution{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return resolution.Resolution{}, false, err
	}

	ictx, cancel := context.WithTimeout(ctx, s.policy.IndexTimeout)
	defer cancel()

	cs, err := s.deps.Prior.SearchPriorAnswers(ictx, req.vector, s.policy.PriorThreshold, 1)
	if err != nil {
		if ctx.Err() != nil {
			return resolution.Resolution{}, false, ctx.Err()
		}
		s.degrade(req, TierPrior, err)
		return resolution.Resolution{}, false, nil
	}

	for _, c := range cs {
		if c.Score() >= s.policy.PriorThreshold {
			s.writeCache(ctx, req, c.Answer())
			return resolution.NewWithSimilarity(c.Answer(), resolution.PriorMatch, c.Score()), true, nil
		}
	}
	return resolution.Resolution{}, false, nil
}

func (s *Service) generate(
	ctx context.Context, req *request, refs []candidate.Candidate,
) (text, model string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	gctx, cancel := context.WithTimeout(ctx, s.policy.GeneratorTimeout)
	defer cancel()

	c, err := s.deps.Generator.Complete(gctx, buildPrompt(req.text, refs))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			req.log.Warn("generator rate limited", zap.Error(err))
			return "", "", fmt.Errorf("generate: %w", err)
		case ctx.Err() != nil:
			return "", "", ctx.Err()
		case errors.Is(err, domain.ErrGenerationFailed):
			req.log.Error("generation failed", zap.Error(err))
			return "", "", fmt.Errorf("generate: %w", err)
		default:
			req.log.Error("generation failed", zap.Error(err))
			return "", "", fmt.Errorf("generate: %w: %w", domain.ErrGenerationFailed, err)
		}
	}

	text = c.Text
	if strings.TrimSpace(text) == "" {
		text = FallbackAnswer
	}
	model = c.Model
	if model == "" {
		model = s.deps.Generator.Model()
	}
	return text, model, nil
}

// persist records the question (unless already stored) and the generated answer.
// It runs detached from the request's cancellation; failures are logged only.
func (s *Service) persist(ctx context.Context, req *request, text, model string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.StoreTimeout)
	defer cancel()

	var q domquestion.Question
	if req.existing != nil {
		q = *req.existing
	} else {
		nq, err := domquestion.New(req.text, req.vector)
		if err != nil {
			req.log.Warn("build question", zap.Error(err))
			return
		}
		if q, err = s.deps.Store.InsertQuestion(wctx, nq); err != nil {
			s.degrade(req, TierDurableStore, fmt.Errorf("insert question: %w", err))
			return
		}
	}

	a, err := domanswer.NewGenerated(q.ID(), text, model)
	if err != nil {
		req.log.Warn("build answer", zap.Int64("question_id", q.ID()), zap.Error(err))
		return
	}
	if _, err := s.deps.Store.InsertAnswer(wctx, a); err != nil {
		s.degrade(req, TierDurableStore, fmt.Errorf("insert answer: %w", err))
	}
}

// writeCache is best effort and detached from the request's cancellation.
func (s *Service) writeCache(ctx context.Context, req *request, text string) {
	if s.deps.FastCache == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.CacheTimeout)
	defer cancel()

	if err := s.deps.FastCache.Set(wctx, req.fingerprint, text, s.policy.CacheTTL); err != nil {
		s.degrade(req, TierFastCache, fmt.Errorf("write-through: %w", err))
	}
}

func (s *Service) degrade(req *request, tier string, err error) {
	s.observer.Degraded(tier)
	req.log.Warn("tier degraded",
		zap.String("tier", tier),
		zap.Error(fmt.Errorf("%w: %w", domain.ErrDependencyDegraded, err)),
	)
}
