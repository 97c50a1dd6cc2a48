package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mickamy/tptmap/hier"
	"github.com/mickamy/tptmap/internal/config"
	"github.com/mickamy/tptmap/internal/logging"
	"github.com/mickamy/tptmap/internal/metrics"
	"github.com/mickamy/tptmap/internal/model"
	"github.com/mickamy/tptmap/orm"
	"github.com/mickamy/tptmap/zoo"
)

type options struct {
	configPath  string
	envFile     string
	showMetrics bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "tptmap",
		Short:         "Map a type hierarchy onto table-per-type storage",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded when present")
	root.PersistentFlags().BoolVar(&opts.showMetrics, "metrics", false, "print statement counts after the run")

	root.AddCommand(
		newVersionCmd(),
		newSchemaCmd(opts),
		newRecreateCmd(opts),
		newSeedCmd(opts),
		newQueryCmd(opts),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "tptmap", version)
			return err //nolint:wrapcheck // pass through
		},
	}
}

func newSchemaCmd(opts *options) *cobra.Command {
	var modelFile string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the DDL for the zoo model or a model parsed from Go source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath, opts.envFile)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			d, err := cfg.Dialect()
			if err != nil {
				return err //nolint:wrapcheck // already prefixed
			}

			m, err := loadMapper(modelFile)
			if err != nil {
				return err
			}
			for _, stmt := range m.Schema(d) {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", stmt); err != nil {
					return err //nolint:wrapcheck // pass through
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "Go file declaring the hierarchy as structs")
	return cmd
}

func loadMapper(modelFile string) (*hier.Mapper, error) {
	if modelFile == "" {
		return zoo.New() //nolint:wrapcheck // already prefixed
	}
	cfg, err := model.Parse(modelFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", modelFile, err)
	}
	return hier.Configure(cfg) //nolint:wrapcheck // already prefixed
}

func newRecreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recreate",
		Short: "Drop and create the zoo schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, opts, func(m *hier.Mapper, db *orm.DB) error {
				if err := m.Recreate(cmd.Context(), db); err != nil {
					return err //nolint:wrapcheck // already prefixed
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema recreated")
				return err //nolint:wrapcheck // pass through
			})
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Recreate the schema and store the sample zoo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withDB(cmd, opts, func(m *hier.Mapper, db *orm.DB) error {
				if err := m.Recreate(ctx, db); err != nil {
					return err //nolint:wrapcheck // already prefixed
				}
				var stored []*hier.Instance
				err := db.Transaction(ctx, func(tx *orm.Tx) error {
					var err error
					stored, err = zoo.Seed(ctx, m, tx)
					return err //nolint:wrapcheck // already prefixed
				})
				if err != nil {
					return fmt.Errorf("seeding: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d instances\n", len(stored))
				return err //nolint:wrapcheck // pass through
			})
		},
	}
}

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query",
		Short: "Run the sample reads against a seeded database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, opts, func(m *hier.Mapper, db *orm.DB) error {
				return zoo.RunQueries(cmd.Context(), m, db, cmd.OutOrStdout()) //nolint:wrapcheck // already prefixed
			})
		},
	}
}

// withDB loads the configuration, opens the configured database with
// statement logging attached, and calls fn with the zoo mapper.
func withDB(cmd *cobra.Command, opts *options, fn func(*hier.Mapper, *orm.DB) error) error {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	d, err := cfg.Dialect()
	if err != nil {
		return err //nolint:wrapcheck // already prefixed
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err //nolint:wrapcheck // already prefixed
	}

	hooks := []orm.Logger{logging.NewStatementLogger(logger, cfg.Log.Sensitive)}
	var counter *metrics.StatementCounter
	if opts.showMetrics {
		if counter, err = metrics.NewStatementCounter(prometheus.NewRegistry()); err != nil {
			return err //nolint:wrapcheck // already prefixed
		}
		hooks = append(hooks, counter)
	}

	m, err := zoo.New()
	if err != nil {
		return err //nolint:wrapcheck // already prefixed
	}
	raw, err := orm.Open(ctx, cfg.Driver(), cfg.DSN(), d)
	if err != nil {
		return err //nolint:wrapcheck // already prefixed
	}
	defer func() { _ = raw.Close() }()
	logger.Info("connected", "dialect", d.Name())

	if err := fn(m, raw.Debug(orm.Loggers(hooks...))); err != nil {
		return err
	}
	if counter != nil {
		return printMetrics(cmd.OutOrStdout(), counter)
	}
	return nil
}

var verbs = []string{"CREATE", "DELETE", "DROP", "INSERT", "SELECT", "UPDATE"}

func printMetrics(w io.Writer, c *metrics.StatementCounter) error {
	if _, err := fmt.Fprintln(w, "statements:"); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	for _, v := range verbs {
		if n := c.Total(v); n > 0 {
			if _, err := fmt.Fprintf(w, "  %s %d\n", v, int64(n)); err != nil {
				return err //nolint:wrapcheck // pass through
			}
		}
	}
	return nil
}
