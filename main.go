// Command gridtactics starts the Grid Tactics server.
//
// It supports three commands:
//  1. "serve" (default) runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "replay" prints the records of a session journal file
//
// Runtime settings come from GRIDTACTICS_* environment variables (a .env
// file is loaded first); flags override them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/gridtactics/api"
	"github.com/wricardo/gridtactics/game/config"
	"github.com/wricardo/gridtactics/game/journal"
	"github.com/wricardo/gridtactics/game/service"
	"github.com/wricardo/gridtactics/game/session"
	"github.com/wricardo/gridtactics/transport/mcp"
	"github.com/wricardo/gridtactics/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Grid Tactics Server"
)

// services holds everything a server command wires together.
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence *session.FilePersistence
	hub         *websocket.Hub
	journal     *journal.Journal
	logger      *zap.Logger
}

// initializeServices wires scenario/session managers, the journal and the
// websocket hub, and restores persisted sessions. Hooks are registered
// before restoring so restored sessions are journaled and broadcast too.
func initializeServices(settings config.Settings, logger *zap.Logger) (*services, error) {
	scenarios, err := config.NewManager(settings.ScenarioDir, settings.DefinitionsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(settings.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	j, err := journal.Open(settings.JournalDir, settings.IndexDB, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	sessions := session.NewManagerWithPersistence(scenarios, settings.Dispatch(), logger, persistence)
	hub := websocket.NewHub(logger)
	sessions.OnSession(hub.Attach)
	sessions.OnSession(j.Attach)

	if err := sessions.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", zap.Error(err))
	}

	return &services{
		game:        service.NewGameService(sessions, scenarios, logger),
		sessions:    sessions,
		persistence: persistence,
		hub:         hub,
		journal:     j,
		logger:      logger,
	}, nil
}

// Close saves every session, stops AI workers and flushes the journal.
func (s *services) Close() error {
	err := s.sessions.SaveAllSessions()
	s.sessions.Close()
	return errors.Join(err, s.journal.Close())
}

// router combines the REST API with the /mcp JSON-RPC endpoint.
func (s *services) router(baseURL string) http.Handler {
	apiServer := api.NewServer(s.game, s.hub, s.logger)
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// loadSettings reads the environment and applies flag overrides.
func loadSettings(cmd *cli.Command) (config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return settings, err
	}
	if cmd.IsSet("scenario-dir") {
		settings.ScenarioDir = cmd.String("scenario-dir")
	}
	if cmd.IsSet("definitions") {
		settings.DefinitionsFile = cmd.String("definitions")
	}
	if cmd.IsSet("session-dir") {
		settings.SessionDir = cmd.String("session-dir")
	}
	if cmd.IsSet("journal-dir") {
		settings.JournalDir = cmd.String("journal-dir")
	}
	if cmd.IsSet("index-db") {
		settings.IndexDB = cmd.String("index-db")
	}
	return settings, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version))

	svc, err := initializeServices(settings, logger)
	if err != nil {
		return err
	}

	// Setup graceful shutdown context
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go svc.hub.Run(ctx)
	go sessionCleanupRoutine(ctx, svc.sessions, logger)
	go filesystemSyncRoutine(ctx, svc.sessions, svc.persistence, logger)

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mainRouter := svc.router(fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("HTTP server failed", zap.Error(err))
		stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()
	if cerr := svc.Close(); cerr != nil {
		logger.Warn("shutdown incomplete", zap.Error(cerr))
	}
	logger.Info("server stopped")
	return err
}

// runNgrok serves router through an ngrok tunnel until ctx ends.
func runNgrok(ctx context.Context, authToken, domain string, router http.Handler, logger *zap.Logger) {
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("mcp", ngrokURL+"/mcp"),
	)
	if err := http.Serve(tun, router); err != nil && ctx.Err() == nil {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the retention window.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, logger *zap.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(24 * time.Hour); removed > 0 {
				logger.Info("cleaned up expired sessions", zap.Int("count", removed))
			}
		}
	}
}

// filesystemSyncRoutine periodically syncs in-memory sessions with filesystem state.
// It removes sessions from memory when their corresponding files are deleted.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, logger *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruneDeletedSessions(manager, persistence, logger); pruned > 0 {
				logger.Info("filesystem sync pruned orphaned sessions", zap.Int("count", pruned))
			}
		}
	}
}

func pruneDeletedSessions(manager *session.Manager, persistence session.SessionPersistence, logger *zap.Logger) int {
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			logger.Debug("pruned session from memory (file deleted)", zap.String("session", s.ID))
		}
	}
	return pruned
}

// runMCP runs an MCP stdio server.
// It tries to reuse an external API at --api-url; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	baseURL := cmd.String("api-url")
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logger.Info("using external API server", zap.String("url", baseURL))
	} else {
		logger.Info("no external API server found, starting internal HTTP server")

		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		svc, err := initializeServices(settings, logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go svc.hub.Run(ctx)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())

		httpServer := &http.Server{Handler: svc.router(baseURL)}
		defer httpServer.Close()
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		logger.Info("internal HTTP server started", zap.String("url", baseURL))
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runReplay prints the records of a journal file.
func runReplay(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("replay needs a journal file (events-YYYY-MM-DD-HH.jsonl.zst)")
	}
	return replayJournal(cmd.Writer, path, cmd.String("session"))
}

func replayJournal(w io.Writer, path, sessionID string) error {
	records, err := journal.ReadJSONLZstd(path)
	if err != nil {
		return err
	}

	counts := map[journal.Kind]int{}
	for _, r := range records {
		if sessionID != "" && r.Session != sessionID {
			continue
		}
		counts[r.Kind]++
		at := r.At.Format("15:04:05.000")
		switch r.Kind {
		case journal.KindEvent:
			fmt.Fprintf(w, "%s %s turn %d #%d %s %s\n", at, r.Session, r.Turn, r.Seq, r.Team, r.Change)
		case journal.KindUndo:
			fmt.Fprintf(w, "%s %s turn %d undo #%d %s\n", at, r.Session, r.Turn, r.Seq, r.Team)
		case journal.KindFail:
			fmt.Fprintf(w, "%s %s turn %d rejected %q: %s\n", at, r.Session, r.Turn, r.Command, r.Error)
		}
	}
	fmt.Fprintf(w, "%d events, %d undos, %d rejected\n", counts[journal.KindEvent], counts[journal.KindUndo], counts[journal.KindFail])
	return nil
}

func settingsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "scenario-dir", Usage: "scenario directory (GRIDTACTICS_SCENARIO_DIR)"},
		&cli.StringFlag{Name: "definitions", Usage: "action and card definitions (GRIDTACTICS_DEFINITIONS)"},
		&cli.StringFlag{Name: "session-dir", Usage: "session persistence directory (GRIDTACTICS_SESSION_DIR)"},
		&cli.StringFlag{Name: "journal-dir", Usage: "zstd JSONL journal directory, empty disables (GRIDTACTICS_JOURNAL_DIR)"},
		&cli.StringFlag{Name: "index-db", Usage: "SQLite event index, empty disables (GRIDTACTICS_INDEX_DB)"},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
	}
}

func serveFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
		&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}, settingsFlags()...)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "gridtactics",
		Usage:   AppName,
		Version: Version,
		Flags:   serveFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Flags:   serveFlags(),
				Action:  runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", Usage: "API server to proxy to when it is running"},
				}, settingsFlags()...),
				Action: runMCP,
			},
			{
				Name:      "replay",
				Usage:     "Print the records of a journal file",
				ArgsUsage: "<file.jsonl.zst>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "only this session"},
				},
				Action: runReplay,
			},
		},
	}
}

// main loads .env and runs the selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
