package rae

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/assembler"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/federation"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/graph"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/raeconfig"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/reflection"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/retrieval"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/scoring"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/worker"

	"github.com/google/uuid"
)

// EngineError wraps an underlying error with the operation that produced
// it, mirroring core.StoreError's Op/Err shape.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string   { return fmt.Sprintf("rae: %s: %v", e.Op, e.Err) }
func (e *EngineError) Unwrap() error   { return e.Err }
func (e *EngineError) Is(t error) bool { return errors.Is(e.Err, t) }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, Err: err}
}

// Config configures Open. Path and VectorDim are required; everything
// else has a working zero value or is supplied via Option.
type Config struct {
	Path      string
	VectorDim int
	Logger    core.Logger
	Clock     Clock
}

// DefaultConfig returns a Config with every optional field at its working
// default, following core.Config/DefaultConfig's idiom.
func DefaultConfig(path string) Config {
	return Config{Path: path, VectorDim: 0}
}

// Option configures optional Engine collaborators. Applied before the
// storage engine and its dependents are constructed — unlike the teacher's
// post-construction Option, these options influence how the Reflection,
// Assembler, and Federation layers are wired, so they must run first.
type Option func(*engineOptions)

type engineOptions struct {
	embedder  EmbeddingProvider
	llm       LLMProvider
	extractor graph.ExtractorFn
	tenants   []raeconfig.Config
	refuse    func(ctx context.Context, tenantID string, req federation.QueryRequest) bool
}

// WithEmbedder configures the provider used to embed content on Store and
// queries on Retrieve when the caller doesn't supply a vector directly.
func WithEmbedder(e EmbeddingProvider) Option {
	return func(o *engineOptions) { o.embedder = e }
}

// WithLLM configures the provider backing scheduled reflection.
func WithLLM(llm LLMProvider) Option {
	return func(o *engineOptions) { o.llm = llm }
}

// WithGraphExtractor configures the hook ExtractGraph uses to turn memory
// text into triples. Without it, ExtractGraph returns ErrProviderUnavailable.
func WithGraphExtractor(fn graph.ExtractorFn) Option {
	return func(o *engineOptions) { o.extractor = fn }
}

// WithTenantConfig registers and validates a tenant's configuration at
// construction time, per §7/§10: an invalid tenant config fails Open, not
// the tenant's first request.
func WithTenantConfig(cfg raeconfig.Config) Option {
	return func(o *engineOptions) { o.tenants = append(o.tenants, cfg) }
}

// WithFederationRefusalPolicy configures the predicate the federation
// server consults before answering an inbound query (§4.7's "a peer may
// refuse any query without explanation").
func WithFederationRefusalPolicy(fn func(ctx context.Context, tenantID string, req federation.QueryRequest) bool) Option {
	return func(o *engineOptions) { o.refuse = fn }
}

// Engine is the facade over every RAE subsystem: storage, graph, scoring,
// retrieval, reflection, context assembly, the background worker, and
// federation. Structurally the counterpart of pkg/sqvect's DB facade.
type Engine struct {
	store  *core.SQLiteStore
	graph  *graph.GraphStore

	extractor *graph.Extractor

	bandit    *scoring.BanditStore
	retrieval *retrieval.Pipeline
	assembler *assembler.Assembler

	reflection *reflection.Hierarchical
	actor      *reflection.Actor

	worker       *worker.Runner
	scheduler    *worker.Scheduler
	tenantSource *worker.StaticTenantSource

	federationRegistry *federation.PeerRegistry
	federationServer   *federation.Server
	federationRequester *federation.Requester

	embedder EmbeddingProvider
	logger   core.Logger
	clock    Clock

	mu      sync.RWMutex
	tenants map[string]raeconfig.Config
}

// Open builds an Engine. Matches the teacher's Open(config, opts...)
// shape: construct the storage engine, then layer every dependent
// subsystem on top of it, validating every supplied tenant config before
// returning.
func Open(cfg Config, opts ...Option) (*Engine, error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = core.NopLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	coreCfg := core.DefaultConfig()
	coreCfg.Path = cfg.Path
	coreCfg.VectorDim = cfg.VectorDim
	coreCfg.Logger = logger

	store, err := core.NewWithConfig(coreCfg)
	if err != nil {
		return nil, wrapError("open", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, wrapError("open", err)
	}

	graphStore := graph.NewGraphStore(store)
	if err := graphStore.InitGraphSchema(ctx); err != nil {
		store.Close()
		return nil, wrapError("open", err)
	}

	var extractor *graph.Extractor
	if o.extractor != nil {
		extractor = graph.NewExtractor(graphStore, o.extractor)
	}

	bandit := scoring.NewBanditStore()
	pipeline := retrieval.NewPipeline(store, graphStore, bandit, logger)

	var hierarchical *reflection.Hierarchical
	if o.llm != nil {
		hierarchical = reflection.NewHierarchical(store, o.llm, logger)
	}
	actor := reflection.NewActor(store, logger)

	tenantSource := worker.NewStaticTenantSource()
	runner := worker.NewRunner(tenantSource)
	runner.Logger = logger
	scheduler := worker.NewScheduler(runner)

	registry := federation.NewPeerRegistry()
	requester := federation.NewRequester(registry, nil)
	server := &federation.Server{Refuse: o.refuse}

	e := &Engine{
		store:               store,
		graph:               graphStore,
		extractor:           extractor,
		bandit:              bandit,
		retrieval:           pipeline,
		assembler:           assembler.NewAssembler(),
		reflection:          hierarchical,
		actor:               actor,
		worker:              runner,
		scheduler:           scheduler,
		tenantSource:        tenantSource,
		federationRegistry:  registry,
		federationServer:    server,
		federationRequester: requester,
		embedder:            o.embedder,
		logger:              logger,
		clock:               clock,
		tenants:             make(map[string]raeconfig.Config),
	}

	for _, tc := range o.tenants {
		if err := e.SetTenantConfig(tc); err != nil {
			store.Close()
			return nil, wrapError("open", err)
		}
	}

	return e, nil
}

// SetTenantConfig validates cfg and registers it, making the tenant
// eligible for background worker scheduling via AddTenant. An invalid
// config is rejected here, never discovered at first use.
func (e *Engine) SetTenantConfig(cfg raeconfig.Config) error {
	if err := cfg.Validate(); err != nil {
		return wrapError("set_tenant_config", err)
	}
	e.mu.Lock()
	e.tenants[cfg.TenantID] = cfg
	e.mu.Unlock()
	e.tenantSource.AddTenant(cfg.TenantID)
	return nil
}

// TenantConfig returns the registered config for tenantID, if any.
func (e *Engine) TenantConfig(tenantID string) (raeconfig.Config, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, ok := e.tenants[tenantID]
	return cfg, ok
}

// Graph returns the underlying graph store, for callers that need direct
// entity/triple access beyond ExtractGraph.
func (e *Engine) Graph() *graph.GraphStore { return e.graph }

// FederationRegistry returns the peer trust registry, so a caller can run
// invitation issuance and handshakes (pkg/federation's own API) before
// FederateQuery has any trusted peers to query.
func (e *Engine) FederationRegistry() *federation.PeerRegistry { return e.federationRegistry }

// SetFederationTransport wires the network transport FederateQuery uses to
// reach trusted peers. Engine stays transport-agnostic until this is set.
func (e *Engine) SetFederationTransport(t federation.Transport) {
	e.federationRequester = federation.NewRequester(e.federationRegistry, t)
}

// SetLocalRetriever wires what the federation server consults to answer
// inbound queries from peers.
func (e *Engine) SetLocalRetriever(r federation.LocalRetriever) {
	e.federationServer.Retriever = r
}

// Close releases the underlying storage engine.
func (e *Engine) Close() error {
	return e.store.Close()
}

// newArtifactID generates a fresh artifact ID the same way the teacher's
// schema adapter and pkg/reflection's Hierarchical do.
func newArtifactID() string { return uuid.New().String() }
