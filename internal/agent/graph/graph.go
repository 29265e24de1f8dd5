package graph

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	"github.com/mf-advisor-core/server/internal/agent/graph/conversations"
	"github.com/mf-advisor-core/server/internal/agent/graph/nodes"
	"github.com/mf-advisor-core/server/internal/agent/graph/observers"
	"github.com/mf-advisor-core/server/internal/agent/model"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// Config holds everything needed to compose the completion graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the ChatModel and MessagesManager.
type Config struct {
	APIKey       string
	BaseURL      string
	AgentModel   model.AgentModelConfig
	Conversation model.ConversationConfig
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModel       einomodel.BaseChatModel
	ModelName       string
	MessagesManager *conversations.MessagesManager
	Now             func() time.Time
}

// GraphBuilder handles the construction of the completion graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.CompletionRequest, *model.Completion]
}

type graphCompleter struct {
	runnable compose.Runnable[model.CompletionRequest, *model.Completion]
}

func (r *graphCompleter) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	out, err := r.runnable.Invoke(ctx, req, compose.WithCallbacks(observers.NewCallbacks(observers.Labels{
		Agent:     req.AgentID.String(),
		SessionID: req.SessionID,
	})))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return &model.Completion{Fields: map[string]any{}}, nil
	}
	return out, nil
}

// BuildCompleter creates the Gemini chat model, builds the graph, and returns a model.Completer.
func BuildCompleter(ctx context.Context, cfg Config) (model.Completer, error) {
	cm, err := nodes.NewChatModel(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Agent:   &cfg.AgentModel,
	})
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModel:       cm,
		ModelName:       cfg.AgentModel.Model,
		MessagesManager: conversations.NewMessagesManager(cfg.Conversation),
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Str("model", cfg.AgentModel.Model).Msg("Completion graph built successfully")
	return &graphCompleter{runnable: runnable}, nil
}

// NewCompleter wraps an already compiled graph.
func NewCompleter(runnable compose.Runnable[model.CompletionRequest, *model.Completion]) model.Completer {
	return &graphCompleter{runnable: runnable}
}

// BuildGraph constructs and returns the compiled completion graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.CompletionRequest, *model.Completion], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is not initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.CompletionRequest, *model.Completion](
			compose.WithGenLocalState(func(ctx context.Context) *model.CompletionState {
				return &model.CompletionState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager, b.config.Now),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeInputConverter, err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeAgentChatModel,
		b.config.ChatModel,
		compose.WithStatePostHandler(nodes.NewChatModelPostHandler(b.config.ModelName)),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeAgentChatModel, err)
	}

	if err := b.graph.AddLambdaNode(nodes.NodeParser,
		nodes.NewParserNode(),
		compose.WithStatePostHandler(nodes.NewParserPostHandler()),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeParser, err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeAgentChatModel},
		{nodes.NodeAgentChatModel, nodes.NodeParser},
		{nodes.NodeParser, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.CompletionRequest, *model.Completion], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
