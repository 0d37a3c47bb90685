package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/ClaimLens/internal/config"
	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/postgres"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/internal/intelligence/nlp"
	"github.com/turtacn/ClaimLens/pkg/client"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	OutputText  = "text"
	OutputJSON  = "json"
	OutputTable = "table"
)

type cliContextKey struct{}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
}

// CLIContext carries the initialized configuration through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
	ServerAddr   string
	deps         Dependencies
}

// Migrator is the subset of postgres.Migrator the migrate command drives.
type Migrator interface {
	Up() error
	Down(steps int) error
	Status() (uint, bool, error)
	Force(version int) error
	Close() error
}

// Dependencies builds the collaborators commands need. Tests replace them;
// zero fields fall back to DefaultDependencies.
type Dependencies struct {
	NewParser   func(cfg nlp.Config, logger logging.Logger) (*claim.Parser, error)
	NewMigrator func(cfg postgres.PostgresConfig, logger logging.Logger) (Migrator, error)
	NewClient   func(baseURL string, timeout time.Duration) (*client.Client, error)
}

func DefaultDependencies() Dependencies {
	return Dependencies{
		NewParser:   nlp.NewClaimParser,
		NewMigrator: openMigrator,
		NewClient: func(baseURL string, timeout time.Duration) (*client.Client, error) {
			return client.NewClient(baseURL, client.WithTimeout(timeout),
				client.WithUserAgent("claimlens-cli/"+Version))
		},
	}
}

func (d Dependencies) withDefaults() Dependencies {
	def := DefaultDependencies()
	if d.NewParser == nil {
		d.NewParser = def.NewParser
	}
	if d.NewMigrator == nil {
		d.NewMigrator = def.NewMigrator
	}
	if d.NewClient == nil {
		d.NewClient = def.NewClient
	}
	return d
}

// NewRootCommand builds the claimlens command tree.
func NewRootCommand(deps Dependencies) *cobra.Command {
	opts := &RootOptions{}
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "claimlens",
		Short: "Annotate patent claims with part-of-speech tags, noun phrases and features",
		Long: "claimlens parses patent claims into tagged words, numbered noun phrases\n" +
			"and feature segments, and manages the ClaimLens database and API.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts, deps)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: ./claimlens.yaml, ~/.claimlens/config.yaml, /etc/claimlens/config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output; implies --log-level=debug")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall command timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "API server address for remote commands (default: from config)")

	cmd.AddCommand(
		newParseCmd(),
		newClaimsetCmd(),
		newMigrateCmd(),
		newRemoteCmd(),
		newVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, deps Dependencies) error {
	switch opts.OutputFormat {
	case OutputText, OutputJSON, OutputTable:
	default:
		return errors.Newf(errors.ErrCodeBadRequest, "unknown output format %q; expected text, json or table", opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := initConfig(opts, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(opts, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	server := opts.ServerAddr
	if server == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		server = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
		Timeout:      opts.Timeout,
		ServerAddr:   server,
		deps:         deps,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// configSearchPaths are tried in order when --config is not given.
func configSearchPaths() []string {
	paths := []string{"./claimlens.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".claimlens", "config.yaml"))
	}
	return append(paths, "/etc/claimlens/config.yaml")
}

// initConfig loads --config, else the first config file found, else
// defaults and CLAIMLENS_* variables.
func initConfig(opts *RootOptions, stderr io.Writer) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	if opts.Verbose {
		fmt.Fprintln(stderr, "no config file found, using defaults and environment")
	}
	return config.LoadFromEnv()
}

// initLogger writes console logs to stderr so stdout carries only results.
func initLogger(opts *RootOptions, stderr io.Writer) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = "debug"
	}
	if stderr != os.Stderr {
		// Redirected in tests; keep output clean.
		return logging.NewNopLogger(), nil
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLI context not initialized")
	}
	return cliCtx, nil
}

// commandContext bounds a command by --timeout.
func (c *CLIContext) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), c.Timeout)
}

// Execute runs the CLI with the default dependencies.
func Execute() error {
	root := NewRootCommand(DefaultDependencies())
	if err := root.Execute(); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// renderTable writes an aligned table with a header row.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(rows)
	table.Render()
}

// PrintError writes err to stderr, with the error code when it has one.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// readInput returns args joined, the contents of file, or stdin when file
// is "-".
func readInput(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New(errors.ErrCodeBadRequest, "no claim text given; pass it as an argument or use --file")
	}
}
