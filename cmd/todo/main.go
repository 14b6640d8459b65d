package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"todo-list/config"
	"todo-list/dataservice"
	"todo-list/storage"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fail(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// run executes the todo command tree with args and releases the store
// afterwards, whether the command succeeded or not.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := &cli{stdout: stdout, logger: log.New()}
	app.logger.SetOutput(stderr)
	defer app.close()

	root := app.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// cli holds what every subcommand needs once the store is loaded.
type cli struct {
	stdout     io.Writer
	logger     *log.Logger
	configPath string
	json       bool

	tasks   *dataservice.Tasks
	backend storage.Backend
	redis   *redis.Client
}

func (a *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "todo",
		Short: "Manage a small task list",
		Long:  "todo lists, adds, edits and removes tasks kept in a local database, a table store or a remote todo API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose || cfg.Debug {
				a.logger.SetLevel(log.DebugLevel)
			}
			return a.open(cmd.Context(), cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("TODO_CONFIG"), "Path to a TOML config file")
	root.PersistentFlags().BoolP("verbose", "V", false, "Enable debug output")
	root.PersistentFlags().BoolVar(&a.json, "json", false, "Output in JSON format")

	root.AddCommand(
		a.listCmd(),
		a.showCmd(),
		a.addCmd(),
		a.editCmd(),
		a.doneCmd(),
		a.removeCmd(),
	)
	return root
}

func (a *cli) open(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Redis.ConnectionString != "" {
		opts, err := config.ParseRedis(cfg.Redis.ConnectionString)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.redis = redis.NewClient(opts)
	}
	backend, err := storage.Open(cfg.Storage, a.redis)
	if err != nil {
		return err
	}
	a.backend = backend
	a.tasks = dataservice.NewTasks(backend, dataservice.NewCache(), a.logger, cfg.Seed)
	if err := a.tasks.Load(ctx); err != nil {
		return err
	}
	a.logger.WithFields(log.Fields{"backend": cfg.Storage.Backend, "count": a.tasks.Count()}).Debug("task list ready")
	return nil
}

func (a *cli) close() {
	if a.backend != nil {
		if err := storage.Close(a.backend); err != nil {
			a.logger.WithError(err).Warn("close storage")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Debug("close redis")
		}
	}
}
