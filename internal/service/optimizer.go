package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/cache"
	"promptforge/internal/port/contentgen"
	"promptforge/internal/port/database"
	"promptforge/internal/port/messagequeue"
	"promptforge/internal/port/solver"
)

// OptimizerService orchestrates one optimization: fingerprint and cache
// lookup, fact generation, solving (with transparent fallback), content
// generation, assembly, persistence, and cache write. Solver failures are
// fully absorbed here and never surface to the caller.
type OptimizerService struct {
	efficacy *EfficacyStore
	facts    *FactGenerator
	rules    *RuleSet
	solver   solver.Solver
	fallback *Fallback

	cache    cache.Cache
	cacheTTL time.Duration

	store database.Store       // optional
	gen   contentgen.Generator // optional
	queue messagequeue.Queue   // optional

	maxModels int

	// Concurrent identical requests share a single computation.
	group singleflight.Group
}

// OptimizerOptions carries the optional collaborators of the optimizer.
type OptimizerOptions struct {
	Store database.Store
	Gen   contentgen.Generator
	Queue messagequeue.Queue
}

// NewOptimizerService creates the optimizer. efficacy, facts, rules, slv,
// fb, and c are required; opts collaborators may be nil and degrade
// gracefully (no persistence, placeholder content, no events).
func NewOptimizerService(
	efficacy *EfficacyStore,
	facts *FactGenerator,
	rules *RuleSet,
	slv solver.Solver,
	fb *Fallback,
	c cache.Cache,
	cacheTTL time.Duration,
	maxModels int,
	opts OptimizerOptions,
) *OptimizerService {
	return &OptimizerService{
		efficacy:  efficacy,
		facts:     facts,
		rules:     rules,
		solver:    slv,
		fallback:  fb,
		cache:     c,
		cacheTTL:  cacheTTL,
		store:     opts.Store,
		gen:       opts.Gen,
		queue:     opts.Queue,
		maxModels: maxModels,
	}
}

// cacheEntry is the serialized form of a cached result, carrying the
// efficacy store version it was computed against.
type cacheEntry struct {
	Version uint64        `json:"version"`
	Result  prompt.Result `json:"result"`
}

// Optimize produces an optimized prompt for the request. Side effects are
// limited to cache and persistence writes; the only error paths are request
// validation failures.
func (s *OptimizerService) Optimize(ctx context.Context, req prompt.OptimizationRequest) (*prompt.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	req.Normalize()

	// An effectively empty request first consults the analyzer collaborator;
	// if that yields nothing the fact generator's neutral default weighting
	// takes over. Either way the request is never an error.
	if len(req.TargetTasks) == 0 && len(req.TargetBehaviors) == 0 && s.gen != nil {
		if analysis, err := s.gen.Analyze(ctx, req.UserPrompt); err == nil && analysis != nil {
			req.TargetTasks = analysis.DetectedTasks
			req.TargetBehaviors = analysis.DetectedBehaviors
			if req.Domain == prompt.DomainNeutral && analysis.DomainHint != "" {
				req.Domain = analysis.DomainHint
			}
		}
	}

	// The snapshot is taken first so the fingerprint records exactly the
	// version the entry was computed against, even under concurrent feedback.
	snap := s.efficacy.Snapshot(req.TargetTasks, req.TargetBehaviors, req.TargetModel, req.Domain)
	fp := s.fingerprint(req, snap.Version)

	if cached, ok := s.lookup(ctx, fp, snap.Version); ok {
		slog.Debug("optimization served from cache", "fingerprint", fp[:12], "version", snap.Version)
		cached.FromCache = true
		return cached, nil
	}

	v, err, _ := s.group.Do(fp, func() (any, error) {
		return s.compute(ctx, req, fp, snap)
	})
	if err != nil {
		return nil, err
	}

	res := v.(*prompt.Result)
	return res, nil
}

// compute runs the full optimization pipeline for a cache miss.
func (s *OptimizerService) compute(ctx context.Context, req prompt.OptimizationRequest, fp string, snap efficacy.Snapshot) (*prompt.Result, error) {
	start := time.Now()

	facts := s.facts.Generate(req, snap)

	components, usedFallback := s.solve(ctx, facts)

	// Both paths satisfy the rule set by construction; a violation here
	// means a solver bug, which the fallback absorbs.
	if err := s.rules.Validate(components); err != nil {
		slog.Warn("solver result failed validation, using fallback", "error", err)
		sol := s.fallback.Optimize(facts)
		components = sol.Components
		usedFallback = true
	}

	score := s.rules.Score(components, facts)

	res := &prompt.Result{
		ID:          uuid.NewString(),
		Components:  components,
		Score:       score,
		TargetModel: req.TargetModel,
		Domain:      req.Domain,
		UserPrompt:  req.UserPrompt,
		CreatedAt:   time.Now().UTC(),
	}

	s.fillContent(ctx, req, res)
	res.FullPrompt = assemble(res.Components)
	res.Rationale = rationale(res.Components, req, score, usedFallback)

	if s.store != nil {
		if err := s.store.CreateResult(ctx, res); err != nil {
			slog.Error("persist optimization result", "id", res.ID, "error", err)
		}
	}

	s.storeCache(ctx, fp, snap.Version, res)
	s.publishOptimization(res)

	slog.Info("optimization completed",
		"id", res.ID,
		"components", len(res.Components),
		"score", res.Score,
		"fallback", usedFallback,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// solve tries the external solver and falls back to the greedy optimizer on
// any solver error. The solver is never on the critical path: this method
// cannot fail.
func (s *OptimizerService) solve(ctx context.Context, facts Facts) (components []prompt.Component, usedFallback bool) {
	if s.solver != nil {
		problem := solver.Problem{
			Facts:     facts.SolverFacts(),
			Rules:     s.rules.Program(),
			MaxModels: s.maxModels,
		}
		sol, err := s.solver.Solve(ctx, problem)
		if err == nil {
			return sol.Components, false
		}
		slog.Warn("solver failed, using fallback", "solver", s.solver.Name(), "error", err)
	}

	sol := s.fallback.Optimize(facts)
	return sol.Components, true
}

// fillContent asks the content generator for each component's text. A
// generation failure degrades that single component to a placeholder and
// never aborts the result.
func (s *OptimizerService) fillContent(ctx context.Context, req prompt.OptimizationRequest, res *prompt.Result) {
	analysis := prompt.Analysis{
		DetectedTasks:     req.TargetTasks,
		DetectedBehaviors: req.TargetBehaviors,
		DomainHint:        req.Domain,
	}

	for i := range res.Components {
		ct := res.Components[i].Type
		if s.gen != nil {
			text, err := s.gen.Generate(ctx, ct, req.UserPrompt, analysis)
			if err == nil && text != "" {
				res.Components[i].Content = text
				continue
			}
			if err != nil {
				slog.Warn("content generation degraded to placeholder", "component", ct, "error", err)
			}
		}
		res.Components[i].Content = placeholder(ct, req.UserPrompt)
	}
}

// placeholder returns static component text used when the meta-LLM is
// unavailable. The structural optimization result stays valid regardless.
func placeholder(ct prompt.ComponentType, userPrompt string) string {
	switch ct {
	case prompt.ComponentPersona:
		return "You are a careful expert assistant."
	case prompt.ComponentInstruction:
		return "Follow these instructions carefully to answer the query: " + userPrompt
	case prompt.ComponentContext:
		return "Consider all relevant information and constraints before responding."
	case prompt.ComponentExample:
		return "Here's an example of a good response: [Example response that demonstrates desired qualities]"
	case prompt.ComponentConstraint:
		return "Important: Your response must be factual, precise, and include step-by-step reasoning."
	case prompt.ComponentOutputFormat:
		return "Format your response as follows: 1) Initial analysis, 2) Step-by-step reasoning, 3) Final answer"
	}
	return "[" + strings.ToUpper(string(ct)) + " CONTENT]"
}

// assemble joins component contents into the final prompt text.
func assemble(components []prompt.Component) string {
	parts := make([]string, len(components))
	for i, c := range components {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n\n")
}

// rationale explains which structure was chosen and why.
func rationale(components []prompt.Component, req prompt.OptimizationRequest, score float64, usedFallback bool) string {
	types := make([]string, len(components))
	for i, c := range components {
		types[i] = string(c.Type)
	}

	method := "declarative constraint solving"
	if usedFallback {
		method = "greedy relevance ranking"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Structure (%s) selected via %s", strings.Join(types, ", "), method)
	if len(req.TargetTasks) > 0 {
		fmt.Fprintf(&b, " for tasks %v", req.TargetTasks)
	}
	if len(req.TargetBehaviors) > 0 {
		fmt.Fprintf(&b, " and behaviors %v", req.TargetBehaviors)
	}
	fmt.Fprintf(&b, ". Predicted effectiveness: %.3f.", score)
	return b.String()
}

// History returns prior optimization results, newest first.
func (s *OptimizerService) History(ctx context.Context, limit, offset int, model string) ([]prompt.Result, int, error) {
	if s.store == nil {
		return nil, 0, nil
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListResults(ctx, limit, offset, model)
}

// GetResult returns one stored result by ID.
func (s *OptimizerService) GetResult(ctx context.Context, id string) (*prompt.Result, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no persistence configured")
	}
	return s.store.GetResult(ctx, id)
}

// fingerprint derives the deterministic cache key: sorted task and behavior
// sets, model, domain, the user prompt, and the efficacy store version. The
// user prompt must participate because cached results embed prompt-derived
// content. Folding the version into the key makes every entry from an older
// version unreachable the moment feedback lands.
func (s *OptimizerService) fingerprint(req prompt.OptimizationRequest, version uint64) string {
	tasks := make([]string, len(req.TargetTasks))
	for i, t := range req.TargetTasks {
		tasks[i] = string(t)
	}
	sort.Strings(tasks)

	behaviors := make([]string, len(req.TargetBehaviors))
	for i, b := range req.TargetBehaviors {
		behaviors[i] = string(b)
	}
	sort.Strings(behaviors)

	h := sha256.New()
	h.Write([]byte(strings.Join(tasks, ",")))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(behaviors, ",")))
	h.Write([]byte{'|'})
	h.Write([]byte(req.TargetModel))
	h.Write([]byte{'|'})
	h.Write([]byte(req.Domain))
	h.Write([]byte{'|'})
	h.Write([]byte(req.UserPrompt))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatUint(version, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// lookup returns a cached result only when its recorded store version still
// matches. A version mismatch is a miss, never a stale hit.
func (s *OptimizerService) lookup(ctx context.Context, fp string, version uint64) (*prompt.Result, bool) {
	data, ok, err := s.cache.Get(ctx, fp)
	if err != nil || !ok {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Version != version {
		return nil, false
	}

	res := entry.Result
	return &res, true
}

func (s *OptimizerService) storeCache(ctx context.Context, fp string, version uint64, res *prompt.Result) {
	data, err := json.Marshal(cacheEntry{Version: version, Result: *res})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, fp, data, s.cacheTTL); err != nil {
		slog.Warn("cache store failed", "error", err)
	}
}

// publishOptimization emits a completion event; publish failures are logged
// and ignored.
func (s *OptimizerService) publishOptimization(res *prompt.Result) {
	if s.queue == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"id":           res.ID,
		"target_model": res.TargetModel,
		"domain":       res.Domain,
		"score":        res.Score,
		"components":   len(res.Components),
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.queue.Publish(ctx, messagequeue.SubjectOptimizationCompleted, payload); err != nil {
		slog.Warn("publish optimization event", "error", err)
	}
}
