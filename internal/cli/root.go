// Package cli implements the layered-memory CLI commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/config"
	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/llm"
	"github.com/rcliao/layered-memory/internal/memory"
	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/observe"
	"github.com/rcliao/layered-memory/internal/store"
)

var (
	dbPath     string
	configPath string
	verbose    bool
	jsonLog    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "layered-memory",
	Short: "Layered memory for conversational agents",
	Long:  "Profile, semantic, episodic and procedural memory over one vector-indexed store. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $LAYERED_MEMORY_DB or ~/.layered-memory/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	RootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Log as JSON")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	if jsonLog {
		cfg.Log.Format = config.LogJSON
	}
	return cfg, nil
}

// app is everything one command needs, built from config.
type app struct {
	cfg   *config.Config
	obs   *observe.Observer
	emb   embedding.Embedder
	store store.Store
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	obs := observe.New(os.Stderr, cfg.Log.Verbose)
	if cfg.Log.Format == config.LogJSON {
		obs = observe.NewJSON(os.Stderr, cfg.Log.Verbose)
	}
	emb, err := embedding.New(cfg.EmbedSettings())
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	opts := store.Options{
		Embedder:     emb,
		Index:        cfg.Index,
		EmbedTimeout: cfg.EmbedTimeout,
		Observer:     obs,
	}

	a := &app{cfg: cfg, obs: obs, emb: emb}
	switch cfg.Backend {
	case config.BackendMemory:
		a.store = store.NewMemoryStore(opts)
	default:
		s, err := store.NewSQLiteStore(cfg.DBPath, opts)
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	return a, nil
}

func (a *app) Close() {
	a.store.Close()
	if c, ok := a.emb.(interface{ Close() }); ok {
		c.Close()
	}
	a.obs.Close()
}

// completer returns the configured LLM, or nil when none is configured.
func (a *app) completer() (llm.Completer, error) {
	return llm.New(a.cfg.LLMSettings())
}

func (a *app) substrate() (*memory.Substrate, error) {
	opts := memory.Options{
		UpdateAttempts: a.cfg.UpdateAttempts,
		Metric:         a.cfg.SearchMetric(),
		Observer:       a.obs,
	}
	c, err := a.completer()
	if err != nil {
		return nil, err
	}
	if c != nil {
		opts.Reflect = llm.Reflector(c)
	}
	return memory.New(a.store, opts), nil
}

func mustOpen() *app {
	a, err := openApp()
	if err != nil {
		exitErr("open store", err)
	}
	return a
}

func mustSubstrate(a *app) *memory.Substrate {
	sub, err := a.substrate()
	if err != nil {
		exitErr("llm", err)
	}
	return sub
}

var errEmptyInput = errors.New("content is required (positional arg or stdin)")

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// readInput joins args, or reads stdin when there are none and it is piped.
func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", nil
}

// parseValue accepts a JSON object, or wraps plain text as {"text": ...}.
func parseValue(content string) (model.Value, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "{") {
		var v model.Value
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			return nil, fmt.Errorf("parse value: %w", err)
		}
		return v, nil
	}
	if content == "" {
		return nil, errEmptyInput
	}
	return model.Value{model.FieldText: content}, nil
}

// parseObject decodes an optional JSON object flag.
func parseObject(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	return m, nil
}

// nsFlag parses a required --ns flag.
func nsFlag(cmd *cobra.Command) namespace.Namespace {
	raw, _ := cmd.Flags().GetString("ns")
	ns, err := namespace.Parse(raw)
	if err != nil {
		exitErr("namespace", err)
	}
	return ns
}

// prefixFlag parses an optional --ns flag; empty means every namespace.
func prefixFlag(cmd *cobra.Command) namespace.Namespace {
	raw, _ := cmd.Flags().GetString("ns")
	if raw == "" {
		return nil
	}
	return nsFlag(cmd)
}
