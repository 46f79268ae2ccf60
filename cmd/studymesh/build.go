package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/hupe1980/studymesh"
	"github.com/hupe1980/studymesh/config"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/engine"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/metrics"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/model/anthropic"
	"github.com/hupe1980/studymesh/model/gemini"
	"github.com/hupe1980/studymesh/model/openai"
	"github.com/hupe1980/studymesh/retrieval"
	"github.com/hupe1980/studymesh/router"
	"github.com/hupe1980/studymesh/session"
	"github.com/hupe1980/studymesh/tool"
)

// app holds everything a command needs once configuration is applied.
type app struct {
	mesh    *studymesh.StudyMesh
	logger  logging.Logger
	metrics *metrics.Collector
	closers []func() error
}

// Close releases indexes opened during build.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("cli.close.failed", "error", err.Error())
		}
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		cfg.Model.Provider = p
	}
	if c, _ := cmd.Flags().GetString("corpus"); c != "" {
		cfg.Retrieval.Corpus = c
	}
	return cfg, cfg.Validate()
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		logger: logging.New(logging.Config{
			Level:     logging.ParseLevel(cfg.Log.Level),
			Format:    cfg.Log.Format,
			Component: "studymesh",
		}),
	}

	llm, err := newModel(ctx, cfg.Model, cfg.Model.Name)
	if err != nil {
		return nil, err
	}
	routerLLM := llm
	if cfg.Model.RouterName != "" {
		if routerLLM, err = newModel(ctx, cfg.Model, cfg.Model.RouterName); err != nil {
			return nil, err
		}
	}

	retriever, err := newRetriever(ctx, cfg.Retrieval, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	defaultRoute, ok := router.ParseNode(cfg.Routing.DefaultRoute)
	if !ok {
		a.Close()
		return nil, fmt.Errorf("routing.default_route: unknown route %q", cfg.Routing.DefaultRoute)
	}

	var tools []tool.Tool
	if cfg.Routing.EnableSearch {
		if cfg.Search.APIKey == "" {
			a.Close()
			return nil, errors.New("search enabled but search.api_key (or TAVILY_API_KEY) is empty")
		}
		tools = append(tools, tool.NewWebSearch(func(o *tool.WebSearchOptions) {
			o.APIKey = cfg.Search.APIKey
			o.MaxResults = cfg.Search.MaxResults
			o.Logger = logging.With(a.logger, "component", "tool")
		}))
	}

	if cfg.Server.Metrics {
		a.metrics = metrics.New(func(o *metrics.Options) { o.WithRuntime = true })
	}

	mesh, err := studymesh.New(func(o *studymesh.Options) {
		o.Model = llm
		o.RouterModel = routerLLM
		o.Retriever = retriever
		o.EnableSearch = cfg.Routing.EnableSearch
		o.Tools = tools
		o.SearchMaxIterations = cfg.Search.MaxIterations
		o.SearchToolTimeout = cfg.Search.Timeout
		o.DefaultRoute = defaultRoute
		o.TopK = studymesh.TopK{
			QA:      cfg.Retrieval.TopK.QA,
			Tutor:   cfg.Retrieval.TopK.Tutor,
			Planner: cfg.Retrieval.TopK.Planner,
		}
		o.RouterHistory = cfg.Routing.MaxHistory
		o.EngineConfig = engine.Config{MaxConcurrentRequests: cfg.Server.MaxConcurrent}
		o.SessionStore = session.NewInMemoryStore(session.WithMaxTurns(cfg.Session.MaxTurns))
		o.Logger = a.logger
		if a.metrics != nil {
			o.Observer = a.metrics
		}
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.mesh = mesh
	return a, nil
}

// newModel builds the provider model. SDK level retries are disabled so
// model.max_retries is the only retry budget.
func newModel(ctx context.Context, cfg config.ModelConfig, name string) (model.Model, error) {
	var m model.Model
	switch cfg.Provider {
	case "openai":
		m = openai.NewModel(func(o *openai.Options) {
			if name != "" {
				o.Model = name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.ClientOptions = append(o.ClientOptions, openaiopt.WithMaxRetries(0))
		})
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if name != "" {
				o.Model = anthropicsdk.Model(name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.ClientOptions = append(o.ClientOptions, anthropicopt.WithMaxRetries(0))
		})
	case "gemini":
		g, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			if name != "" {
				o.Model = name
			}
			o.Temperature = float32(cfg.Temperature)
			o.MaxOutputTokens = int32(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
		if err != nil {
			return nil, err
		}
		m = g
	case "mock":
		return newEchoModel(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}

	return model.WithRetry(m, func(o *model.RetryOptions) {
		o.MaxAttempts = cfg.MaxRetries + 1
	}), nil
}

func newRetriever(ctx context.Context, cfg config.RetrievalConfig, a *app) (retrieval.Retriever, error) {
	var docs []retrieval.Document
	if cfg.Corpus != "" && cfg.Backend != "qdrant" {
		var err error
		if docs, err = retrieval.LoadCorpus(cfg.Corpus, retrieval.DefaultChunkOptions); err != nil {
			return nil, err
		}
		a.logger.Info("cli.corpus.loaded", "path", cfg.Corpus, "chunks", len(docs))
	}

	var r retrieval.Retriever
	switch cfg.Backend {
	case "memory":
		r = retrieval.NewMemoryRetriever(docs...)
	case "bleve":
		var (
			b   *retrieval.BleveRetriever
			err error
		)
		if cfg.Bleve.Path != "" {
			b, err = retrieval.OpenBleve(cfg.Bleve.Path)
		} else {
			b, err = retrieval.NewBleveMemory()
		}
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b.Close)
		if len(docs) > 0 {
			if err := b.Index(ctx, docs); err != nil {
				return nil, err
			}
		}
		r = b
	case "qdrant":
		if cfg.Corpus != "" {
			a.logger.Warn("cli.corpus.ignored", "backend", "qdrant", "reason", "collection is populated externally")
		}
		embedder := openai.NewEmbedder(func(o *openai.EmbedderOptions) {
			o.Model = openaisdk.EmbeddingModel(cfg.Qdrant.EmbeddingModel)
		})
		q, err := retrieval.NewQdrantRetriever(embedder, func(o *retrieval.QdrantOptions) {
			o.Host = cfg.Qdrant.Host
			o.Port = cfg.Qdrant.Port
			o.UseTLS = cfg.Qdrant.UseTLS
			o.Collection = cfg.Qdrant.Collection
			o.APIKey = cfg.Qdrant.APIKey
			o.TextKey = cfg.Qdrant.PayloadKey
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, q.Close)
		r = q
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q", cfg.Backend)
	}

	if cfg.CacheSize > 0 {
		cached, err := retrieval.NewCachedRetriever(r, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		r = cached
	}
	return r, nil
}

// newEchoModel backs the mock provider: the supervisor always picks the QA
// specialist and every other call echoes the last user turn.
func newEchoModel() model.Model {
	return model.NewMockModel("echo").SetResponder(func(req model.Request) (model.Response, error) {
		last := ""
		if n := len(req.Contents); n > 0 {
			last = req.Contents[n-1].Text()
		}
		text := "mock answer: " + last
		if strings.HasPrefix(last, "User Question: ") {
			text = "QA Agent"
		}
		return model.Response{
			Content:      core.NewTextContent(core.RoleAssistant, text),
			FinishReason: "stop",
		}, nil
	})
}
