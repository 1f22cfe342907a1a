// file: cmd/root.go
// version: 2.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jdfalk/bookmeta/internal/config"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/metadata"
	"github.com/jdfalk/bookmeta/internal/resolver"
	"github.com/jdfalk/bookmeta/internal/server"
)

var cfgFile string
var databasePath string
var databaseType string
var logLevel string
var logFormat string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookmeta",
	Short: "Resolve book and audiobook metadata from many sources",
	Long: `bookmeta resolves sparse book identifiers (ISBN, catalog volume id,
site id or free text) into normalized book and audiobook records by racing
a local cache against Google Books, Open Library, Hardcover, Spotify and
scraped storefront pages.`,
	SilenceUsage: true,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.AppConfig.Validate(); err != nil {
			return err
		}
		if config.AppConfig.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required to serve the API")
		}

		a, err := newApp(cmd.Context(), &config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.NewServer(a.services(), server.Options{
			MaxBodyBytes:    config.AppConfig.Server.MaxBodyBytes,
			RateLimitPerMin: config.AppConfig.Server.RateLimitPerMin,
			RateLimitBurst:  config.AppConfig.Server.RateLimitBurst,
			DatabaseType:    config.AppConfig.DatabaseType,
		})
		return srv.Start(cmd.Context(), config.AppConfig.Server)
	},
}

// resolveBookCmd resolves one book and prints it as JSON.
var resolveBookCmd = &cobra.Command{
	Use:   "resolve-book",
	Short: "Resolve a single book by ISBN, site id or Google volume id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.AppConfig.Validate(); err != nil {
			return err
		}
		req := resolver.BookRequest{}
		req.ISBN, _ = cmd.Flags().GetString("isbn")
		req.APIID, _ = cmd.Flags().GetString("api-id")
		req.GoogleVolumeID, _ = cmd.Flags().GetString("volume-id")

		a, err := newApp(cmd.Context(), &config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		trail := logger.NewTrail(logger.Get().WithComponent("cli"))
		ctx := logger.WithTrail(cmd.Context(), trail)
		rec, err := a.books.Resolve(ctx, req)
		if err != nil {
			printLines(cmd.ErrOrStderr(), trail.Lines())
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

// searchBooksCmd searches every configured source.
var searchBooksCmd = &cobra.Command{
	Use:   "search-books <query>",
	Short: "Search books across all configured sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.AppConfig.Validate(); err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), &config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.books.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), recs)
	},
}

// warmCmd resolves every ISBN in a file so later lookups hit the cache.
var warmCmd = &cobra.Command{
	Use:   "warm <file>",
	Short: "Pre-populate the book cache from a file of ISBNs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.AppConfig.Validate(); err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		isbns, err := readISBNs(f)
		f.Close()
		if err != nil {
			return err
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		a, err := newApp(cmd.Context(), &config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		ok, failed := runWarm(cmd.Context(), a, isbns, concurrency, cmd.ErrOrStderr())
		fmt.Fprintf(cmd.OutOrStdout(), "\nWarmed %d books (%d failed)\n", ok, failed)
		return nil
	},
}

// readISBNs reads one ISBN per line. Blank lines and # comments are skipped;
// invalid and duplicate entries are dropped.
func readISBNs(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		isbn, ok := metadata.NormalizeISBN(line)
		if !ok {
			logger.Get().Warn("skipping invalid isbn", map[string]interface{}{"value": line})
			continue
		}
		if _, dup := seen[isbn]; dup {
			continue
		}
		seen[isbn] = struct{}{}
		out = append(out, isbn)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read isbn list: %w", err)
	}
	return out, nil
}

// runWarm resolves isbns with bounded concurrency and reports progress to
// progressOut.
func runWarm(ctx context.Context, a *app, isbns []string, concurrency int, progressOut io.Writer) (int, int) {
	if concurrency < 1 {
		concurrency = 1
	}
	bar := progressbar.NewOptions(len(isbns),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription("warming"),
		progressbar.OptionShowCount(),
	)

	var ok, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, isbn := range isbns {
		g.Go(func() error {
			defer bar.Add(1)
			if _, err := a.books.Resolve(ctx, resolver.BookRequest{ISBN: isbn}); err != nil {
				failed.Add(1)
				logger.Get().Debug("warm lookup failed", map[string]interface{}{"isbn": isbn, "error": err.Error()})
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	_ = bar.Finish()
	return int(ok.Load()), int(failed.Load())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bookmeta.yaml)")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "bookmeta.pebble", "path to the pebble database")
	rootCmd.PersistentFlags().StringVar(&databaseType, "db-type", "pebble", "store type: pebble (default) or memory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console or json")

	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("database_type", rootCmd.PersistentFlags().Lookup("db-type"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveBookCmd)
	rootCmd.AddCommand(searchBooksCmd)
	rootCmd.AddCommand(warmCmd)

	// Add serve command specific flags
	serveCmd.Flags().String("port", "8080", "port to run the web server on")
	serveCmd.Flags().String("host", "localhost", "host to bind the web server to")
	serveCmd.Flags().Duration("read-timeout", 15*time.Second, "read timeout (e.g. 15s, 1m)")
	serveCmd.Flags().Duration("write-timeout", 45*time.Second, "write timeout (e.g. 45s, 1m)")
	serveCmd.Flags().Duration("idle-timeout", 60*time.Second, "idle timeout (e.g. 60s, 2m)")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.read_timeout", serveCmd.Flags().Lookup("read-timeout"))
	viper.BindPFlag("server.write_timeout", serveCmd.Flags().Lookup("write-timeout"))
	viper.BindPFlag("server.idle_timeout", serveCmd.Flags().Lookup("idle-timeout"))

	resolveBookCmd.Flags().String("isbn", "", "ISBN-10 or ISBN-13")
	resolveBookCmd.Flags().String("api-id", "", "scraping-site book id")
	resolveBookCmd.Flags().String("volume-id", "", "Google Books volume id")

	warmCmd.Flags().Int("concurrency", 4, "number of books resolved in parallel")
}

func initConfig() {
	config.LoadDotEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bookmeta")
	}

	config.BindEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	config.InitConfig()

	logger.Setup(logger.Config{
		Level:  config.AppConfig.LogLevel,
		Format: logger.ParseLogFormat(config.AppConfig.LogFormat),
		Output: os.Stderr,
	})

	// Ensure database directory exists
	if config.AppConfig.DatabaseType == "pebble" && config.AppConfig.DatabasePath != "" {
		dbDir := filepath.Dir(config.AppConfig.DatabasePath)
		if dbDir != "." {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating database directory: %v\n", err)
			}
		}
	}
}
