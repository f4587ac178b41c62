package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/koeppj/mcp-server-box/internal/credentials"
	"github.com/koeppj/mcp-server-box/internal/discovery"
	"github.com/koeppj/mcp-server-box/internal/metrics"
	"github.com/koeppj/mcp-server-box/internal/middleware"
	"github.com/koeppj/mcp-server-box/internal/session"
	"github.com/koeppj/mcp-server-box/pkg/toolsets"
	"github.com/koeppj/mcp-server-box/pkg/version"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	pathStreamableHTTP = "/mcp"
	pathSSE            = "/sse"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var (
	transport   string
	host        string
	port        int
	mcpAuthType string
	boxAuthType string
	metricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server on stdio, SSE or streamable HTTP.

Settings are read, in increasing precedence, from the --config file, a .env
file in the working directory, the environment and the command line flags.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := config.Default()
	serveCmd.Flags().StringVar(&transport, "transport", defaults.Server.Transport.String(),
		"Transport to expose the server on ("+strings.Join(config.TransportNames(), ", ")+")")
	serveCmd.Flags().StringVar(&host, "host", defaults.Server.Host, "Host to listen on for the HTTP transports")
	serveCmd.Flags().IntVar(&port, "port", defaults.Server.Port, "Port to listen on for the HTTP transports")
	serveCmd.Flags().StringVar(&mcpAuthType, "mcp-auth-type", defaults.Server.McpAuth.String(),
		"How MCP clients authenticate to this server ("+strings.Join(config.McpAuthModeNames(), ", ")+")")
	serveCmd.Flags().StringVar(&boxAuthType, "box-auth-type", defaults.Server.BoxAuth.String(),
		"How this server authenticates to Box ("+strings.Join(config.UpstreamAuthModeNames(), ", ")+")")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on, disabled when empty")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	if logLevel == "" && cfg.Logging.Level != "" {
		zap.ReplaceGlobals(newLogger(cfg.Logging.Level))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(version.GetVersion())
	provider := credentials.NewProvider(cfg.BoxAPI, credentials.WithObserver(m))

	sess, err := session.Open(ctx, cfg.Server.BoxAuth, provider)
	if err != nil {
		return err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: cfg.Server.Name, Version: version.GetVersion()}, nil)
	toolsets.AddAllTools(cfg, sess, mcpServer)

	zap.L().Info("Starting MCP server",
		zap.String("name", cfg.Server.Name),
		zap.String("version", version.GetVersion()),
		zap.String("transport", cfg.Server.Transport.String()),
		zap.String("mcpAuthType", cfg.Server.McpAuth.String()),
		zap.String("boxAuthType", cfg.Server.BoxAuth.String()))

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			return listenAndServe(ctx, "metrics", cfg.Server.MetricsAddr, m.Handler())
		})
	}

	if cfg.Server.Transport == config.TransportStdio {
		g.Go(func() error {
			if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server: %w", err)
			}
			// The client closed stdin. Stop the metrics listener too.
			stop()
			return nil
		})
		return g.Wait()
	}

	handler := newHTTPHandler(cfg, mcpServer, m)
	g.Go(func() error {
		return listenAndServe(ctx, "mcp", cfg.Server.Addr(), handler)
	})

	return g.Wait()
}

// loadConfig loads the configuration and applies the flags the user set
// explicitly. Flag defaults never override the file or the environment.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if flags.Changed("transport") {
		if cfg.Server.Transport, err = config.ParseTransport(transport); err != nil {
			return nil, err
		}
	}
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("mcp-auth-type") {
		if cfg.Server.McpAuth, err = config.ParseMcpAuthMode(mcpAuthType); err != nil {
			return nil, err
		}
	}
	if flags.Changed("box-auth-type") {
		if cfg.Server.BoxAuth, err = config.ParseUpstreamAuthMode(boxAuthType); err != nil {
			return nil, err
		}
	}
	if flags.Changed("metrics-addr") {
		cfg.Server.MetricsAddr = metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, o := range cfg.Normalize() {
		zap.L().Warn(o.Reason,
			zap.String("setting", o.Setting),
			zap.String("from", o.From),
			zap.String("to", o.To))
	}

	if cfg.Server.McpAuth == config.McpAuthToken && cfg.Server.BoxAuth == config.UpstreamAuthDelegated {
		zap.L().Warn("Box auth type mcp_client needs the caller's Box token, but token MCP auth carries the server secret; Box tools will fail",
			zap.String("mcpAuthType", cfg.Server.McpAuth.String()),
			zap.String("boxAuthType", cfg.Server.BoxAuth.String()))
	}

	return cfg, nil
}

// newHTTPHandler builds the full HTTP route table: the discovery endpoints,
// the MCP transport handler, the auth gate and CORS, outermost first:
//
//	CORS -> Gate -> mux (discovery routes, MCP endpoint)
func newHTTPHandler(cfg *config.Config, mcpServer *mcp.Server, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	discovery.NewHandler(cfg, discovery.WithObserver(m)).Install(mux)

	getServer := func(*http.Request) *mcp.Server { return mcpServer }
	switch cfg.Server.Transport {
	case config.TransportSSE:
		mux.Handle(pathSSE, mcp.NewSSEHandler(getServer, nil))
	default:
		mux.Handle(pathStreamableHTTP, mcp.NewStreamableHTTPHandler(getServer, &mcp.StreamableHTTPOptions{
			Stateless: true,
		}))
	}

	gate := middleware.NewGate(cfg, m)
	return middleware.CORS(gate.Middleware(mux))
}

// listenAndServe serves handler on addr until ctx is done, then shuts the
// server down gracefully.
func listenAndServe(ctx context.Context, name, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("Server started!", zap.String("server", name), zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down server", zap.String("server", name))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server shutdown: %w", name, err)
	}

	return nil
}
