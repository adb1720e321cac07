package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/seald/internal/adapt"
	"github.com/kalambet/seald/internal/api"
	"github.com/kalambet/seald/internal/config"
	"github.com/kalambet/seald/internal/engine"
	"github.com/kalambet/seald/internal/feedback"
	"github.com/kalambet/seald/internal/model"
	"github.com/kalambet/seald/internal/policy"
	"github.com/kalambet/seald/internal/storage"
	"github.com/kalambet/seald/internal/trainer"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the seald server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running seald server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show seald system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "seald.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "seald version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	})))

	apiToken, err := config.EnsureAPIToken(config.NewBackend())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Refuse to double-start: probe the health endpoint before claiming
	// the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("seald is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("seald is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	device := cfg.Model.Device
	if device == "" {
		device = engine.SelectDevice()
	}
	slog.Info("model backend selected", "base_model", cfg.Model.BaseModel, "device", device)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	journal, err := feedback.OpenLog(filepath.Join(cfg.Storage.DataDir, "feedback.jsonl"))
	if err != nil {
		return fmt.Errorf("opening feedback journal: %w", err)
	}
	defer journal.Close()

	pol, err := policy.New(cfg.Adaptation.FeedbackThreshold)
	if err != nil {
		return fmt.Errorf("building adaptation policy: %w", err)
	}

	// Wire the simulated engine into the model service.
	provider := &engine.Provider{Device: device, Temperature: cfg.Model.Temperature}
	models := model.NewService(model.ProviderFunc(
		func(loadCtx context.Context, baseModel, adapterPath string) (model.Handle, error) {
			return provider.Load(loadCtx, baseModel, adapterPath)
		},
	), cfg.Model.BaseModel, device)

	// Initial base-model load runs in the background; the HTTP surface
	// answers 503 until it completes.
	go func() {
		if err := models.Load(ctx, ""); err != nil {
			slog.Error("initial model load failed", "error", err)
			return
		}
		slog.Info("base model loaded", "base_model", cfg.Model.BaseModel)
	}()

	tuner := trainer.New(cfg.Adaptation.Rank, cfg.Adaptation.Alpha, cfg.Adaptation.LearningRate, slog.Default())
	coord := adapt.NewCoordinator(journal, feedback.NewPool(), pol, tuner, models, store,
		cfg.Model.BaseModel, filepath.Join(cfg.Storage.DataDir, "adapters"), slog.Default())

	handler := api.NewHandler(api.Deps{
		Models:       models,
		Coordinator:  coord,
		Store:        store,
		FeedbackPath: journal.Path(),
		MaxTokens:    cfg.Model.MaxTokens,
		AdminToken:   apiToken,
		Logger:       slog.Default(),
	})

	// MCP server over stdio.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Models:      models,
		Coordinator: coord,
		MaxTokens:   cfg.Model.MaxTokens,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "seald listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("seald is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop seald (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to seald (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
		printStatus("Base model", "%s", cfg.Model.BaseModel)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return nil
	}
	printStatus("Server", "running on port %d", cfg.Server.Port)

	statusResp, err := client.Get(serverURL + "/api/status")
	if err == nil {
		var st struct {
			Model struct {
				Status  string `json:"status"`
				Base    string `json:"base_model"`
				Adapter string `json:"current_adapter"`
				Device  string `json:"device"`
			} `json:"model_status"`
			Policy struct {
				Count     int `json:"feedback_count"`
				Threshold int `json:"feedback_threshold"`
			} `json:"policy_status"`
			AdaptationLog []json.RawMessage `json:"adaptation_log"`
			PoolSize      int               `json:"feedback_pool_size"`
		}
		if json.NewDecoder(statusResp.Body).Decode(&st) == nil {
			printStatus("Model", "%s (%s on %s)", st.Model.Status, st.Model.Base, st.Model.Device)
			adapter := st.Model.Adapter
			if adapter == "" {
				adapter = "none (base model)"
			}
			printStatus("Adapter", "%s", adapter)
			printStatus("Feedback", "%d/%d to next adaptation", st.Policy.Count, st.Policy.Threshold)
			printStatus("Adaptations", "%d log entries", len(st.AdaptationLog))
		}
		statusResp.Body.Close()
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
