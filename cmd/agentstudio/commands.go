package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentstudio/config"
	"github.com/BaSui01/agentstudio/internal/cache"
	"github.com/BaSui01/agentstudio/internal/filewatch"
	"github.com/BaSui01/agentstudio/internal/metrics"
	"github.com/BaSui01/agentstudio/internal/telemetry"
	"github.com/BaSui01/agentstudio/studio"
	"github.com/BaSui01/agentstudio/workflow"
	"github.com/BaSui01/agentstudio/workflow/execution"
	"github.com/BaSui01/agentstudio/workflow/history"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ serve
// =============================================================================

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log, false)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting Agent Studio",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	providers, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer shutdownTelemetry(providers, logger)

	var cacheManager *cache.Manager
	if cfg.History.DraftsEnabled {
		cacheManager, err = cache.NewManager(cfg.Redis.CacheConfig(cfg.History.DraftTTL), logger)
		if err != nil {
			logger.Warn("redis not available, readiness will not report it", zap.Error(err))
		} else {
			defer func() { _ = cacheManager.Close() }()
		}
	}

	srv, err := NewServer(cfg, metrics.NewCollector("agentstudio", logger), cacheManager, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func shutdownTelemetry(p *telemetry.Providers, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
}

// =============================================================================
// 🧩 compile
// =============================================================================

// metaFlags 工作流元数据参数，compile/run/watch 共用
type metaFlags struct {
	id, name, description, version, tags string
}

func (m *metaFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&m.id, "id", "", "Workflow id")
	fs.StringVar(&m.name, "name", "", "Workflow name (defaults to the canvas file name)")
	fs.StringVar(&m.description, "description", "", "Workflow description")
	fs.StringVar(&m.version, "version", "", "Workflow version")
	fs.StringVar(&m.tags, "tags", "", "Comma separated workflow tags")
}

func (m *metaFlags) meta(canvasPath string) workflow.Meta {
	name := m.name
	if name == "" && canvasPath != "" {
		base := filepath.Base(canvasPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	var tags []string
	for _, t := range strings.Split(m.tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return workflow.Meta{
		ID:          m.id,
		Name:        name,
		Description: m.description,
		Version:     m.version,
		Tags:        tags,
	}
}

func runCompile(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("compile", stderr)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	canvas := fs.String("canvas", "", "Canvas export (JSON with nodes and edges)")
	out := fs.String("out", "", "Write the definition to this file instead of stdout")
	format := fs.String("format", "", "Output format: json or yaml (defaults to the --out extension, else json)")
	strict := fs.Bool("strict", false, "Fail when the canvas has error diagnostics")
	var mf metaFlags
	mf.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *canvas == "" {
		return usageError(fs, "--canvas is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log, true)
	defer func() { _ = logger.Sync() }()

	c := &canvasCompiler{compiler: newCompiler(cfg, logger), logger: logger}
	result, err := c.compileFile(ctx, *canvas, mf.meta(*canvas))
	if err != nil {
		return err
	}
	printDiagnostics(stderr, result.Diagnostics)

	if *strict && workflow.HasErrors(result.Diagnostics) {
		return fmt.Errorf("canvas has error diagnostics")
	}
	return writeDefinition(stdout, result.Definition, *out, *format)
}

// canvasCompiler 读取画布文件并通过会话编译
type canvasCompiler struct {
	compiler *workflow.Compiler
	logger   *zap.Logger
}

func (c *canvasCompiler) compileFile(ctx context.Context, path string, meta workflow.Meta) (*workflow.Compilation, error) {
	snapshot, err := workflow.LoadSnapshotFile(path)
	if err != nil {
		return nil, fmt.Errorf("load canvas %s: %w", path, err)
	}
	session := studio.NewSession("", snapshot,
		studio.WithCompiler(c.compiler),
		studio.WithLogger(c.logger))
	defer session.Close()
	return session.Compile(ctx, meta), nil
}

func newCompiler(cfg *config.Config, logger *zap.Logger) *workflow.Compiler {
	return workflow.NewCompiler(append(cfg.Compiler.CompilerOptions(), workflow.WithCompilerLogger(logger))...)
}

func printDiagnostics(w io.Writer, diags []workflow.Diagnostic) {
	for _, d := range diags {
		if d.NodeID != "" {
			fmt.Fprintf(w, "%s [%s] %s: %s\n", d.Severity, d.Code, d.NodeID, d.Message)
			continue
		}
		fmt.Fprintf(w, "%s [%s] %s\n", d.Severity, d.Code, d.Message)
	}
}

func writeDefinition(stdout io.Writer, def *workflow.WorkflowDefinition, out, format string) error {
	if out != "" && format == "" {
		return def.SaveToFile(out)
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(format) {
	case "", "json":
		text, err = def.ToJSON()
	case "yaml", "yml":
		text, err = def.ToYAML()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}
	if out != "" {
		return os.WriteFile(out, []byte(text), 0o644)
	}
	_, err = fmt.Fprintln(stdout, strings.TrimRight(text, "\n"))
	return err
}

// =============================================================================
// ▶️ run
// =============================================================================

// inputFlag 收集重复的 --input key=value
type inputFlag map[string]any

func (f inputFlag) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (f inputFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	f[strings.TrimSpace(key)] = value
	return nil
}

func runExecute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("run", stderr)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	canvas := fs.String("canvas", "", "Canvas export (JSON with nodes and edges)")
	sessionID := fs.String("session", "", "Session id; loads the saved draft when --canvas is empty")
	saveDraft := fs.Bool("save-draft", false, "Save the canvas as a draft of --session before running")
	userID := fs.String("user", "", "User id sent with the execution")
	timeout := fs.Duration("timeout", 10*time.Minute, "Give up waiting after this long")
	inputs := inputFlag{}
	fs.Var(inputs, "input", "Execution input as key=value (repeatable)")
	var mf metaFlags
	mf.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *canvas == "" && *sessionID == "" {
		return usageError(fs, "--canvas or --session is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log, true)
	defer func() { _ = logger.Sync() }()

	providers, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer shutdownTelemetry(providers, logger)

	engine, err := execution.NewClient(cfg.Engine.ClientConfig(), execution.WithClientLogger(logger))
	if err != nil {
		return err
	}

	opts := []studio.Option{
		studio.WithCompiler(newCompiler(cfg, logger)),
		studio.WithEngine(engine),
		studio.WithHistorySize(cfg.History.MaxSize),
		studio.WithPollerConfig(cfg.Poller.ToPollerConfig()),
		studio.WithLogger(logger),
		studio.WithStatusListener(func(st *execution.Status) {
			fmt.Fprintf(stderr, "execution %s: %s (%d/%d steps)\n",
				st.ExecutionID, st.Status, st.CompletedSteps, st.TotalSteps)
		}),
	}

	if *sessionID != "" && cfg.History.DraftsEnabled {
		cacheManager, err := cache.NewManager(cfg.Redis.CacheConfig(cfg.History.DraftTTL), logger)
		if err != nil {
			return fmt.Errorf("draft store: %w", err)
		}
		defer func() { _ = cacheManager.Close() }()
		opts = append(opts, studio.WithDraftStore(history.NewStore[workflow.Snapshot](cacheManager, cfg.History.DraftTTL, logger)))
	}

	snapshot := workflow.EmptySnapshot()
	if *canvas != "" {
		if snapshot, err = workflow.LoadSnapshotFile(*canvas); err != nil {
			return fmt.Errorf("load canvas %s: %w", *canvas, err)
		}
	}

	session := studio.NewSession(*sessionID, snapshot, opts...)
	defer session.Close()

	switch {
	case *canvas == "":
		if err := session.LoadDraft(ctx); err != nil {
			return fmt.Errorf("load draft %s: %w", *sessionID, err)
		}
	case *saveDraft:
		if err := session.SaveDraft(ctx); err != nil {
			return fmt.Errorf("save draft %s: %w", session.ID(), err)
		}
	}

	meta := mf.meta(*canvas)
	if meta.Name == "" {
		meta.Name = session.ID()
	}

	compiledRun, err := session.Run(ctx, meta, execution.SubmitRequest{
		UserID:    *userID,
		InputData: inputs,
		Trigger:   &execution.Trigger{Kind: "manual"},
	})
	if err != nil {
		return err
	}
	printDiagnostics(stderr, compiledRun.Diagnostics)
	fmt.Fprintf(stderr, "submitted workflow %s, execution %s\n", compiledRun.WorkflowID, compiledRun.ExecutionID)

	waitCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	results, err := session.Wait(waitCtx)
	if err != nil {
		session.StopPolling()
		return fmt.Errorf("execution %s: %w", compiledRun.ExecutionID, err)
	}
	if results == nil {
		return fmt.Errorf("execution %s: polling stopped before a terminal status", compiledRun.ExecutionID)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	if results.Status != execution.StatusCompleted {
		return fmt.Errorf("execution %s finished with status %s", results.ExecutionID, results.Status)
	}
	return nil
}

// =============================================================================
// 👀 watch
// =============================================================================

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("watch", stderr)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	canvas := fs.String("canvas", "", "Canvas export to watch")
	out := fs.String("out", "", "Write the definition to this file instead of stdout")
	format := fs.String("format", "", "Output format: json or yaml")
	interval := fs.Duration("interval", time.Second, "Polling interval")
	var mf metaFlags
	mf.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *canvas == "" {
		return usageError(fs, "--canvas is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log, true)
	defer func() { _ = logger.Sync() }()

	c := &canvasCompiler{compiler: newCompiler(cfg, logger), logger: logger}
	meta := mf.meta(*canvas)

	var mu sync.Mutex
	recompile := func() {
		mu.Lock()
		defer mu.Unlock()
		result, err := c.compileFile(ctx, *canvas, meta)
		if err != nil {
			logger.Warn("compile failed", zap.Error(err))
			return
		}
		printDiagnostics(stderr, result.Diagnostics)
		if err := writeDefinition(stdout, result.Definition, *out, *format); err != nil {
			logger.Warn("write definition failed", zap.Error(err))
			return
		}
		logger.Info("canvas compiled",
			zap.String("canvas", *canvas),
			zap.Int("steps", len(result.Definition.Steps)),
			zap.Int("diagnostics", len(result.Diagnostics)))
	}

	watcher, err := filewatch.New([]string{*canvas}, func(evt filewatch.Event) {
		if evt.Op == filewatch.OpRemove {
			logger.Warn("canvas removed, waiting for it to come back", zap.String("path", evt.Path))
			return
		}
		recompile()
	}, filewatch.WithInterval(*interval), filewatch.WithLogger(logger))
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(*canvas); statErr == nil {
		recompile()
	}

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// =============================================================================
// 🏥 health
// =============================================================================

func runHealthCheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("health", stderr)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	path := fs.String("path", "/health", "Health endpoint")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(*addr, "/")+*path, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	fmt.Fprintln(stdout, "OK")
	return nil
}

// =============================================================================
// 🔧 参数辅助
// =============================================================================

func newFlagSet(name string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func usageError(fs *flag.FlagSet, msg string) error {
	fmt.Fprintf(fs.Output(), "%s: %s\n", fs.Name(), msg)
	fs.Usage()
	return errUsage
}
