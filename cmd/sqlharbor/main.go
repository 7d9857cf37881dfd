package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/app"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/config"
	"github.com/sadopc/sqlharbor/internal/history"
	"github.com/sadopc/sqlharbor/internal/logging"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"

	// Register database adapters
	_ "github.com/sadopc/sqlharbor/internal/adapter/duckdb"
	_ "github.com/sadopc/sqlharbor/internal/adapter/mysql"
	_ "github.com/sadopc/sqlharbor/internal/adapter/postgres"
	_ "github.com/sadopc/sqlharbor/internal/adapter/sqlite"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	snapshotCacheSize = 16
	snapshotCacheTTL  = time.Hour
)

// rootFlags holds the flags shared by every command.
type rootFlags struct {
	adapter        string
	profile        string
	configPath     string
	logLevel       string
	noCatalogCache bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rf rootFlags

	rootCmd := &cobra.Command{
		Use:   "sqlharbor [conn_str...]",
		Short: "A terminal SQL IDE",
		Long: `sqlharbor is a terminal SQL IDE for DuckDB, SQLite, PostgreSQL and MySQL.

Examples:
  sqlharbor                                   # In-memory SQLite
  sqlharbor ./data.db                         # SQLite file
  sqlharbor -a duckdb ./warehouse.duckdb      # DuckDB file
  sqlharbor postgres://user@host/db           # Connect via URL
  sqlharbor -P prod                           # Configured profile`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, args, &rf)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rf.adapter, "adapter", "a", "", "Database adapter ("+strings.Join(adapter.Names(), ", ")+")")
	pf.StringVarP(&rf.profile, "profile", "P", "", "Connection profile from the config file")
	pf.StringVar(&rf.configPath, "config", "", "Config file path")
	pf.StringVar(&rf.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&rf.noCatalogCache, "no-catalog-cache", false, "Do not show or save cached catalogs")
	if err := addOptionFlags(pf); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newExecCmd(&rf),
		newCatalogCmd(&rf),
		newAdaptersCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// session is everything a command needs before it connects.
type session struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	closer  io.Closer
	sel     *config.Selection
}

func (s *session) Close() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

// newSession loads the config, opens the log and resolves the connection.
func newSession(cmd *cobra.Command, args []string, rf *rootFlags) (*session, error) {
	cfgPath := rf.configPath
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, cfgPath: cfgPath, logger: logging.Discard()}
	level := logging.ParseLevel(firstNonEmpty(rf.logLevel, os.Getenv(config.EnvPrefix+"LOG_LEVEL"), cfg.LogLevel))
	if dir, err := config.Dir(); err == nil {
		logger, closer, err := logging.Open(dir, level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
		} else {
			s.logger, s.closer = logger, closer
		}
	}

	if err := applyDetectedAdapter(cmd, args, rf, cfg); err != nil {
		s.Close()
		return nil, err
	}
	wd, _ := os.Getwd()
	sel, err := cfg.Resolve(config.ResolveInput{
		Profile:    rf.profile,
		ProjectDir: wd,
		Flags:      cmd.Flags(),
		ConnStr:    args,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if _, err := adapter.Lookup(sel.Adapter); err != nil {
		s.Close()
		return nil, err
	}
	s.sel = sel
	s.logger.Info("starting",
		"version", version,
		"command", cmd.Name(),
		"adapter", sel.Adapter,
		"profile", sel.Profile,
		"conn_str", logging.RedactAll(sel.ConnStr))
	return s, nil
}

func runTUI(cmd *cobra.Command, args []string, rf *rootFlags) error {
	s, err := newSession(cmd, args, rf)
	if err != nil {
		return err
	}
	defer s.Close()

	var hist *history.History
	if dir, err := config.Dir(); err == nil {
		hist, err = history.New(dir, s.cfg.History.Size)
		if err != nil {
			s.logger.Warn("open history", "error", err)
			hist = nil
		}
	}
	if hist != nil {
		defer hist.Close()
	}

	var store catalog.Store
	if s.cfg.Catalog.Cache && !rf.noCatalogCache {
		var backing catalog.Store
		if dir, err := config.CacheDir(); err == nil {
			backing = catalog.FileStore{Dir: dir}
		}
		store = catalog.NewMemoryStore(snapshotCacheSize, snapshotCacheTTL, backing)
	}

	model := app.New(app.Options{
		Config:     s.cfg,
		ConfigPath: s.cfgPath,
		History:    hist,
		Store:      store,
		Logger:     s.logger,
		Connect: &appmsg.ConnectRequestMsg{
			Adapter: s.sel.Adapter,
			ConnStr: s.sel.ConnStr,
			Options: adapter.Options(s.sel.Options),
			Profile: s.sel.Profile,
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running application: %w", err)
	}

	if m, ok := finalModel.(app.Model); ok {
		if err := m.Close(); err != nil {
			s.logger.Warn("close connection", "error", err)
		}
	}
	return nil
}

// applyDetectedAdapter guesses the adapter from the first connection string
// when nothing else names one.
func applyDetectedAdapter(cmd *cobra.Command, args []string, rf *rootFlags, cfg *config.Config) error {
	if len(args) == 0 || cmd.Flags().Changed("adapter") || rf.profile != "" || cfg.DefaultProfile != "" {
		return nil
	}
	if os.Getenv(config.EnvPrefix+"ADAPTER") != "" {
		return nil
	}
	if name := detectAdapter(args[0]); name != "" {
		return cmd.Flags().Set("adapter", name)
	}
	return nil
}

func detectAdapter(connStr string) string {
	lower := strings.ToLower(connStr)
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://") || strings.HasPrefix(lower, "file:"):
		return "sqlite"
	case strings.HasPrefix(lower, "duckdb://") || strings.HasPrefix(lower, "md:"):
		return "duckdb"
	case strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite"
	case strings.HasSuffix(lower, ".duckdb") || strings.HasSuffix(lower, ".ddb"):
		return "duckdb"
	case strings.Contains(lower, "@tcp("):
		return "mysql"
	}
	return ""
}

// errorText prefixes adapter errors with their title.
func errorText(err error) string {
	var ae *adapter.Error
	if errors.As(err, &ae) && ae.Title != "" {
		return ae.Title + "\n" + ae.Msg
	}
	return "Error: " + err.Error()
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
