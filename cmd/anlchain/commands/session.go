package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/chain"
	"github.com/openfroyo/anlchain/pkg/config"
	"github.com/openfroyo/anlchain/pkg/modules/sample"
	"github.com/openfroyo/anlchain/pkg/policy"
	"github.com/openfroyo/anlchain/pkg/script"
	"github.com/openfroyo/anlchain/pkg/stores"
	"github.com/openfroyo/anlchain/pkg/telemetry"
	"github.com/openfroyo/anlchain/pkg/wasmmod"
)

// WasmNamespace holds the classes loaded from the module directory.
const WasmNamespace = "Wasm"

// sessionOptions select the optional services of a session.
type sessionOptions struct {
	history     bool
	policyDir   string
	metricsAddr string
}

// session is what a command needs to assemble and run pipelines.
type session struct {
	settings   *config.Settings
	tel        *telemetry.Telemetry
	logger     zerolog.Logger
	namespaces map[string]*chain.Namespace
	classes    []*wasmmod.Class
	policy     *policy.Engine
	store      *stores.SQLiteStore
}

func newSession(ctx context.Context, opts sessionOptions) (*session, error) {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, err
	}

	useHistory := opts.history && settings.HistoryDB != ""
	cfg := telemetryConfig(settings, useHistory)
	if opts.metricsAddr != "" {
		cfg.Metrics.ListenAddress = opts.metricsAddr
	}
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	s := &session{
		settings: settings,
		tel:      tel,
		logger:   tel.Logger.Zerolog(),
	}

	if err := s.loadNamespaces(); err != nil {
		s.Close(ctx)
		return nil, err
	}

	s.policy, err = policy.NewEngine(s.logger)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	dir := opts.policyDir
	if dir == "" {
		dir = settings.PolicyDir
	}
	if dir != "" {
		if err := s.policy.LoadPolicies(ctx, []string{dir}); err != nil {
			s.Close(ctx)
			return nil, err
		}
	}

	if useHistory {
		if err := s.openStore(ctx); err != nil {
			s.Close(ctx)
			return nil, err
		}
		tel.Events.Subscribe(storeEvents(s.store, s.logger), nil)
	}

	return s, nil
}

// telemetryConfig maps the tool settings onto the telemetry configuration.
func telemetryConfig(s *config.Settings, events bool) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = s.Telemetry.ServiceName
	cfg.ServiceVersion = buildVersion
	cfg.Environment = "cli"

	cfg.Logging.Level = s.LogLevel
	cfg.Logging.Format = s.LogFormat
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	cfg.Tracing.Enabled = s.Telemetry.Tracing && s.Telemetry.Exporter != "none"
	cfg.Tracing.Exporter = s.Telemetry.Exporter
	cfg.Tracing.Endpoint = s.Telemetry.Endpoint
	if cfg.Tracing.Exporter == "none" {
		cfg.Tracing.Exporter = "stdout"
	}
	cfg.Tracing.StdoutWriter = os.Stderr

	cfg.Metrics.ListenAddress = s.Telemetry.MetricsAddr
	cfg.Events.Enabled = events
	return cfg
}

func (s *session) loadNamespaces() error {
	s.namespaces = map[string]*chain.Namespace{
		chain.Global.Name():  chain.Global,
		sample.NamespaceName: sample.NewNamespace(s.logger),
	}
	if s.settings.ModuleDir == "" {
		return nil
	}

	classes, err := wasmmod.LoadDir(s.settings.ModuleDir, wasmmod.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("failed to load WASM modules: %w", err)
	}
	ns := chain.NewNamespace(WasmNamespace)
	if err := wasmmod.Register(ns, classes...); err != nil {
		return err
	}
	s.classes = classes
	s.namespaces[WasmNamespace] = ns
	s.logger.Debug().Int("classes", len(classes)).Str("dir", s.settings.ModuleDir).Msg("WASM modules loaded")
	return nil
}

func (s *session) openStore(ctx context.Context) error {
	path := s.settings.HistoryDB
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return err
	}
	s.store = store
	return nil
}

// storeEvents appends telemetry events to the run history.
func storeEvents(store stores.Store, logger zerolog.Logger) telemetry.EventSubscriber {
	return func(ev telemetry.Event) {
		rec := &stores.Event{
			Type:      ev.Type,
			Level:     stores.EventLevel(ev.Level),
			Message:   ev.Message,
			Timestamp: ev.Timestamp,
		}
		if ev.RunID != "" {
			rec.RunID = &ev.RunID
		}
		if ev.Phase != "" {
			rec.Phase = &ev.Phase
		}
		if len(ev.Data) > 0 {
			if data, err := json.Marshal(ev.Data); err == nil {
				details := string(data)
				rec.Details = &details
			}
		}
		if err := store.AppendEvent(context.Background(), rec); err != nil {
			logger.Warn().Err(err).Str("type", ev.Type).Msg("Failed to store event")
		}
	}
}

// chainOptions returns the options every chain of the session gets.
func (s *session) chainOptions(pipeline string) []chain.Option {
	opts := []chain.Option{
		chain.WithLogger(s.logger),
		chain.WithObserver(s.tel.Observer()),
		chain.WithGate(s.policy.Gate),
	}
	if s.store != nil {
		opts = append(opts, chain.WithObserver(stores.NewRecorder(s.store, pipeline, s.logger)))
	}
	return opts
}

// pipeline is a loaded pipeline file.
type pipeline struct {
	path string
	apps []*chain.App

	// definition is set for CUE and YAML pipelines.
	definition *config.Pipeline

	// invocations are the app calls made by a script.
	invocations []script.Invocation
}

// load reads a pipeline definition or executes a script. Scripts run in
// mode; ModeBuild only collects their apps.
func (s *session) load(ctx context.Context, path string, mode script.Mode) (*pipeline, error) {
	opts := s.chainOptions(path)

	if config.IsPipelineDefinition(path) {
		def, err := config.LoadPipeline(ctx, path)
		if err != nil {
			return nil, err
		}
		app, err := def.App(s.namespaces, opts...)
		if err != nil {
			return nil, err
		}
		return &pipeline{path: path, apps: []*chain.App{app}, definition: def}, nil
	}

	rt := script.NewRuntime(s.scriptOptions(path, mode, opts)...)
	res, err := rt.Exec(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return &pipeline{path: path, apps: res.Apps, invocations: res.Invocations}, nil
}

func (s *session) scriptOptions(path string, mode script.Mode, chainOpts []chain.Option) []script.Option {
	dir := filepath.Dir(path)
	opts := []script.Option{
		script.WithLogger(s.logger),
		script.WithOutput(os.Stdout),
		script.WithMode(mode),
		script.WithChainOptions(chainOpts...),
		script.WithSourceLoader(func(module string) (string, error) {
			if !strings.HasSuffix(module, ".star") {
				return "", fmt.Errorf("unknown module %q", module)
			}
			data, err := os.ReadFile(filepath.Join(dir, module))
			if err != nil {
				return "", err
			}
			return string(data), nil
		}),
	}
	for name, ns := range s.namespaces {
		if ns == chain.Global {
			continue
		}
		opts = append(opts, script.WithPackage(strings.ToLower(name), ns))
	}
	return opts
}

// app returns the named app, or the only one when name is empty.
func (p *pipeline) app(name string) (*chain.App, error) {
	if name == "" {
		switch len(p.apps) {
		case 0:
			return nil, fmt.Errorf("%s defines no app", p.path)
		case 1:
			return p.apps[0], nil
		default:
			names := make([]string, 0, len(p.apps))
			for _, a := range p.apps {
				names = append(names, a.Name())
			}
			return nil, fmt.Errorf("%s defines several apps (%s); select one with --app", p.path, strings.Join(names, ", "))
		}
	}
	for _, a := range p.apps {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%s defines no app named %s", p.path, name)
}

// loopCounts picks the event count and display frequency: an explicit flag
// wins over the pipeline, which wins over the settings.
func (s *session) loopCounts(p *pipeline, numLoop, displayFrequency int, numLoopSet, displaySet bool) (int, int) {
	n := s.settings.NumLoop
	d := s.settings.DisplayFrequency
	if p.definition != nil {
		if p.definition.NumLoop != 0 {
			n = p.definition.NumLoop
		}
		if p.definition.DisplayFrequency != 0 {
			d = p.definition.DisplayFrequency
		}
	}
	if numLoopSet {
		n = numLoop
	}
	if displaySet {
		d = displayFrequency
	}
	return n, d
}

// Close releases the session's resources.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	for _, c := range s.classes {
		errs = append(errs, c.Close(ctx))
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.tel != nil {
		errs = append(errs, s.tel.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
