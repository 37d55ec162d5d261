// Package main is the entry point for the Memoh channel engine. It wires
// internal/channelstore, internal/sandbox, internal/botmanager and
// internal/toolfacade together with go.uber.org/fx, then exposes the
// resulting tool registry on two illustrative, out-of-spec transports: an
// MCP stdio server and a minimal echo-based HTTP shim (SPEC_FULL.md §6.6).
// Grounded on memohai-Memoh/cmd/agent/main.go's fx.Provide/fx.Invoke/
// fx.Lifecycle wiring idiom, scaled down to this module's component graph.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/memoh/internal/botmanager"
	"github.com/memohai/memoh/internal/botregistry"
	"github.com/memohai/memoh/internal/builtinbots"
	"github.com/memohai/memoh/internal/channelstore"
	"github.com/memohai/memoh/internal/config"
	"github.com/memohai/memoh/internal/janitor"
	"github.com/memohai/memoh/internal/logger"
	"github.com/memohai/memoh/internal/sandbox"
	"github.com/memohai/memoh/internal/server"
	"github.com/memohai/memoh/internal/toolfacade"
	"github.com/memohai/memoh/internal/version"
	"github.com/memohai/memoh/internal/workspace"
)

// transportMode selects which transport fx.Invoke(startTransport) starts.
type transportMode struct {
	stdio     bool
	addr      string
	jwtSecret string
}

func provideTransportMode() transportMode {
	stdio := flag.Bool("stdio", false, "serve the MCP stdio transport instead of HTTP")
	addr := flag.String("addr", "", "HTTP listen address (overrides config.toml)")
	jwtSecret := flag.String("jwt-secret", os.Getenv("MEMOH_JWT_SECRET"), "secret for bearer-token session extraction")
	flag.Parse()
	return transportMode{stdio: *stdio, addr: *addr, jwtSecret: *jwtSecret}
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore() *channelstore.Store {
	return channelstore.New()
}

func provideSandboxEngine(cfg config.Config) *sandbox.Engine {
	hookTimeout, err := time.ParseDuration(cfg.Sandbox.HookTimeout)
	if err != nil {
		hookTimeout = 0
	}
	return sandbox.NewEngine(hookTimeout, cfg.Sandbox.EgressRPS, cfg.Sandbox.EgressBurst)
}

func provideBotRegistry() (*botregistry.Registry, error) {
	reg := botregistry.New()
	if err := reg.Register(builtinbots.GuessBotName, builtinbots.GuessBot{}); err != nil {
		return nil, fmt.Errorf("register builtin bots: %w", err)
	}
	return reg, nil
}

func provideWorkspaceAllocator(cfg config.Config) (*workspace.Allocator, error) {
	return workspace.NewAllocator(cfg.Sandbox.WorkspaceRoot)
}

func provideBotManager(store *channelstore.Store, engine *sandbox.Engine, reg *botregistry.Registry, alloc *workspace.Allocator) *botmanager.Manager {
	return botmanager.New(store, engine, reg, alloc)
}

func provideExecutor(store *channelstore.Store, bots *botmanager.Manager) *toolfacade.Executor {
	return toolfacade.NewExecutor(store, bots)
}

func provideToolRegistry(executor *toolfacade.Executor) *toolfacade.ToolRegistry {
	registry := toolfacade.NewToolRegistry()
	toolfacade.RegisterAll(registry, executor)
	return registry
}

func provideJanitor(store *channelstore.Store, bots *botmanager.Manager, executor *toolfacade.Executor) *janitor.Janitor {
	sweeper := janitor.New(store, bots)
	executor.SetTracker(sweeper)
	return sweeper
}

func provideHTTPServer(log *slog.Logger, mode transportMode, cfg config.Config, registry *toolfacade.ToolRegistry) *server.Server {
	addr := mode.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return server.NewServer(log, addr, mode.jwtSecret, registry)
}

func startJanitor(lc fx.Lifecycle, sweeper *janitor.Janitor, cfg config.Config, log *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			interval, err := time.ParseDuration(cfg.Janitor.Interval)
			if err != nil {
				interval = 30 * time.Second
			}
			if err := sweeper.Start("@every " + interval.String()); err != nil {
				return fmt.Errorf("start janitor: %w", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

func startTransport(lc fx.Lifecycle, mode transportMode, srv *server.Server, registry *toolfacade.ToolRegistry, log *slog.Logger, shutdowner fx.Shutdowner) {
	if mode.stdio {
		ctx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					code := runStdio(ctx, registry, log)
					cancel()
					if code != 0 {
						_ = shutdowner.Shutdown(fx.ExitCode(code))
					} else {
						_ = shutdowner.Shutdown()
					}
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}

func main() {
	fx.New(
		fx.Provide(
			provideTransportMode,
			provideConfig,
			provideLogger,
			provideStore,
			provideSandboxEngine,
			provideBotRegistry,
			provideWorkspaceAllocator,
			provideBotManager,
			provideExecutor,
			provideToolRegistry,
			provideJanitor,
			provideHTTPServer,
		),
		fx.Invoke(
			startJanitor,
			startTransport,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

// runStdio hosts the MCP stdio transport, registering every Tool Facade
// operation as an MCP tool. The generic AddTool call shape below is a
// best-effort rendering of the go-sdk's tool-registration API: no call
// site for it appeared anywhere in the retrieved reference pack, so this
// is not independently verifiable against a known-good example.
func runStdio(ctx context.Context, registry *toolfacade.ToolRegistry, log *slog.Logger) int {
	mcpServer := gomcp.NewServer(
		&gomcp.Implementation{Name: "memoh", Version: version.GetInfo()},
		nil,
	)

	for _, descriptor := range registry.List() {
		_, handler, ok := registry.Lookup(descriptor.Name)
		if !ok {
			continue
		}
		gomcp.AddTool(mcpServer, &gomcp.Tool{
			Name:        descriptor.Name,
			Description: descriptor.Description,
			InputSchema: descriptor.InputSchema,
		}, mcpHandlerFor(handler))
	}

	err := mcpServer.Run(ctx, &gomcp.StdioTransport{})
	if ctx.Err() != nil {
		return 0
	}
	if err == nil || errors.Is(err, io.EOF) {
		log.Warn("mcp stdio closed; waiting for shutdown signal")
		<-ctx.Done()
		return 0
	}
	log.Error("mcp server failed", slog.Any("error", err))
	return 1
}

// mcpHandlerFor adapts a toolfacade.ToolHandler to the MCP tool call
// signature, extracting the session id from the request's arguments
// under "session_id" (the stdio transport has no header channel of its
// own to carry it).
func mcpHandlerFor(handler toolfacade.ToolHandler) func(context.Context, *gomcp.CallToolRequest, map[string]any) (*gomcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *gomcp.CallToolRequest, args map[string]any) (*gomcp.CallToolResult, any, error) {
		session := toolfacade.ToolSessionContext{SessionID: toolfacade.FirstStringArg(args, "session_id")}
		result, toolErr := handler(ctx, session, args)
		if toolErr != nil {
			return &gomcp.CallToolResult{IsError: true}, toolfacade.BuildToolErrorResult(toolErr.Error()), nil
		}
		return &gomcp.CallToolResult{}, toolfacade.BuildToolSuccessResult(result), nil
	}
}
