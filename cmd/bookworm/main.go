package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jordanlanch/bookworm/config"
	"github.com/jordanlanch/bookworm/pkg/app"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/recommendations"
	"github.com/jordanlanch/bookworm/pkg/testdata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	logLevel string
	cfg      *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "bookworm",
	Short:   "BookWorm recommendation maintenance",
	Long:    "Operational commands for the BookWorm recommendation store: schema, expiry sweep, seed data and reports.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")

	seedCmd.Flags().IntVar(&seedBooks, "books", 0, "Number of books (default from library config)")
	seedCmd.Flags().IntVar(&seedUsers, "users", 0, "Number of readers (default from library config)")
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 0, "Number of recommendations")
	recommendCmd.Flags().BoolVar(&recommendRefresh, "refresh", false, "Ignore stored recommendations")

	rootCmd.AddCommand(migrateCmd, sweepCmd, seedCmd, statsCmd, recommendCmd)
}

// openApp wires the service with a private metrics registry
func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, logger.New(cfg.LogLevel), prometheus.NewRegistry())
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Schema is up to date")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired recommendations once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.Service.CleanupExpiredRecommendations(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweeping: %w", err)
		}
		fmt.Printf("Deleted %d expired recommendations\n", deleted)
		return nil
	},
}

var (
	seedBooks int
	seedUsers int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a generated library of books, readers, shelves and reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		libCfg := testdata.DefaultLibraryConfig()
		if seedBooks > 0 {
			libCfg.Books = seedBooks
		}
		if seedUsers > 0 {
			libCfg.Users = seedUsers
		}

		lib, err := testdata.GenerateLibrary(libCfg)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := testdata.InsertLibrary(cmd.Context(), a.Catalog, lib); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}

		fmt.Println("Seeded library:")
		fmt.Printf("  Genres: %d\n", len(lib.Genres))
		fmt.Printf("  Books: %d\n", len(lib.Books))
		fmt.Printf("  Readers: %d (password %q)\n", len(lib.Users), libCfg.Password)
		fmt.Printf("  Shelf entries: %d\n", len(lib.Shelves))
		fmt.Printf("  Reviews: %d\n", len(lib.Reviews))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print system-wide recommendation statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Service.GetSystemRecommendationStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Recommendations: %d total, %d active\n\n", stats.TotalRecommendations, stats.ActiveRecommendations)
		fmt.Println("By type:")
		for _, t := range stats.RecommendationsByType {
			fmt.Printf("  %-14s %5d  avg score %.1f\n", t.Type, t.Count, t.AvgScore)
		}
		eng := stats.EngagementStats
		fmt.Println("\nEngagement:")
		fmt.Printf("  Viewed: %d (%.2f%%)\n", eng.Viewed, eng.ViewRate)
		fmt.Printf("  Clicked: %d (%.2f%%)\n", eng.Clicked, eng.ClickRate)
		fmt.Printf("  Added to shelf: %d (%.2f%%)\n", eng.Added, eng.ConversionRate)
		if len(stats.TopRecommendedBooks) > 0 {
			fmt.Println("\nMost recommended:")
			for _, b := range stats.TopRecommendedBooks {
				fmt.Printf("  %3dx  %s by %s\n", b.Count, b.Title, b.Author)
			}
		}
		return nil
	},
}

var (
	recommendLimit   int
	recommendRefresh bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "Print personalized recommendations for a reader",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Service.GetPersonalizedRecommendations(cmd.Context(), args[0], recommendations.Query{
			Limit:   recommendLimit,
			Refresh: recommendRefresh,
		})
		if err != nil {
			return err
		}

		for i, r := range recs {
			fmt.Printf("%2d. %s by %s  [%s, %.0f]\n", i+1, r.Book.Title, r.Book.Author, r.Type, r.Score)
			fmt.Printf("    %s\n", r.Explanation)
		}
		if len(recs) == 0 {
			fmt.Println("No recommendations")
		}
		return nil
	},
}
