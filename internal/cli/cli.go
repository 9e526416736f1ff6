package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderbook/internal/app"
	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/loader"
	"github.com/Additional-Code/orderbook/internal/migration"
	"github.com/Additional-Code/orderbook/internal/schema"
	workerfeed "github.com/Additional-Code/orderbook/internal/worker/feed"
)

const stopTimeout = 10 * time.Second

// ErrNotConfirmed is returned by destructive commands run without --yes.
var ErrNotConfirmed = errors.New("refusing to drop data without --yes")

// NewRootCommand builds the root orderbook CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orderbook",
		Short:         "Customer, item and order record keeper",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newLoadCmd())
	root.AddCommand(newFeedCmd())

	return root
}

// Execute runs the orderbook CLI until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP API and gRPC health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app.Module)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume the order feed topic into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				version, err := mig.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the store schema",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Drop and recreate customers, items and orders (destroys data)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return ErrNotConfirmed
			}
			var mgr *schema.Manager
			opts := fx.Options(app.Core, fx.Populate(&mgr))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mgr.Initialize(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema initialized")
				return nil
			})
		},
	}
	initCmd.Flags().Bool("yes", false, "Confirm that existing data may be dropped")
	cmd.AddCommand(initCmd)
	return cmd
}

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Merge a JSON order feed into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				l   *loader.Loader
				cfg config.Config
			)
			opts := fx.Options(app.Core, fx.Populate(&l, &cfg))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				path, _ := cmd.Flags().GetString("file")
				if path == "" {
					path = cfg.Loader.FeedPath
				}
				report, err := l.LoadFile(ctx, path)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringP("file", "f", "", "Feed file (defaults to LOADER_FEED_PATH)")
	return cmd
}

func newFeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Work with the order feed topic",
	}
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a JSON order feed to the topic, one message per record",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				pub *workerfeed.Publisher
				cfg config.Config
			)
			opts := fx.Options(app.Core, fx.Provide(workerfeed.NewPublisher), fx.Populate(&pub, &cfg))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				path, _ := cmd.Flags().GetString("file")
				if path == "" {
					path = cfg.Loader.FeedPath
				}
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open feed: %w", err)
				}
				defer f.Close()

				records, err := loader.Decode(f)
				if err != nil {
					return err
				}
				batchID, err := pub.Publish(ctx, records)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d records (batch %s)\n", len(records), batchID)
				return nil
			})
		},
	}
	publishCmd.Flags().StringP("file", "f", "", "Feed file (defaults to LOADER_FEED_PATH)")
	cmd.AddCommand(publishCmd)
	return cmd
}

// serve starts a long-running application and stops it when ctx ends.
func serve(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
