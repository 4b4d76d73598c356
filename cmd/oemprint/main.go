/*
oemprint fetches or reads OEM ephemeris files, parses them, and prints
their contents to standard output.

Usage:

	oemprint [flags] [urls or filenames...]

With no arguments, the source URL from the configuration file (by default
the NASA ISS ephemeris) is used.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mmp/oem"
	"github.com/mmp/oem/internal/config"
	"github.com/mmp/oem/internal/fetch"
	"github.com/mmp/oem/internal/store"
)

var log = logging.Logger("oemprint")

var rootCmd = &cobra.Command{
	Use:   "oemprint [urls or filenames...]",
	Short: "Print the contents of OEM ephemeris files",
	Long: `oemprint parses CCSDS-style Orbital Ephemeris Message files, fetched over
HTTP or read from disk, and prints their metadata, trajectory comments, and
state vectors. Lines that cannot be parsed are reported on standard error.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logging.SetAllLoggers(logging.LevelDebug)
		} else {
			logging.SetAllLoggers(logging.LevelInfo)
		}
	},
	RunE: runPrint,
}

var (
	configPath string
	debug      bool
	maxLines   int
	csvOutput  bool
	storePath  string
	cacheDir   string
)

// Maximum number of sources fetched at once.
const fetchConcurrency = 4

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "SQLite storage directory (overrides config store.path)")

	rootCmd.Flags().IntVar(&maxLines, "max-lines", -1, "stop after this many lines; 0 scans everything (overrides config parse.max_lines)")
	rootCmd.Flags().BoolVar(&csvOutput, "csv", false, "print the state vector table as CSV instead of the full dump")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for local copies of fetched files (overrides config source.cache_dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Path = storePath
	}
	if f := cmd.Flags().Lookup("max-lines"); f != nil && f.Changed {
		if maxLines < 0 {
			return nil, fmt.Errorf("--max-lines must not be negative")
		}
		cfg.Parse.MaxLines = maxLines
	}
	if f := cmd.Flags().Lookup("cache-dir"); f != nil && f.Changed {
		cfg.Source.CacheDir = cacheDir
	}
	return cfg, nil
}

type document struct {
	source string
	text   string
	err    error
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// loadDocuments retrieves every source concurrently. Failures are kept
// per source; results are in the order of sources.
func loadDocuments(ctx context.Context, f *fetch.Fetcher, sources []string) []document {
	docs := make([]document, len(sources))

	var eg errgroup.Group
	eg.SetLimit(fetchConcurrency)
	for i, source := range sources {
		i, source := i, source
		docs[i].source = source
		eg.Go(func() error {
			if isURL(source) {
				docs[i].text, docs[i].err = f.Fetch(ctx, source)
			} else if contents, err := os.ReadFile(source); err != nil {
				docs[i].err = err
			} else {
				docs[i].text = string(contents)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return docs
}

func runPrint(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, err := cfg.Source.Timeout()
	if err != nil {
		return err
	}

	sources := args
	if len(sources) == 0 {
		sources = []string{cfg.Source.URL}
	}

	var st *store.Store
	if cfg.Store.Path != "" {
		if st, err = store.Open(cfg.Store.Path); err != nil {
			return err
		}
		defer st.Close()
	}

	f := fetch.New(fetch.Config{HTTPTimeout: timeout, CacheDir: cfg.Source.CacheDir})
	docs := loadDocuments(ctx, f, sources)

	parser := oem.Parser{
		MaxLines: cfg.Parse.MaxLines,
		Syntax: func(err error) {
			fmt.Fprint(os.Stderr, err)
		},
	}

	failed := 0
	for _, doc := range docs {
		var eph *oem.Ephemeris
		if doc.err != nil {
			// Report and carry on with an empty record for this source.
			log.Errorf("%s: %v", doc.source, doc.err)
			failed++
			eph = &oem.Ephemeris{}
		} else {
			eph, err = parser.Parse([]byte(doc.text), doc.source)
			if errors.Is(err, oem.ErrEmptyDocument) {
				log.Warnf("%v", err)
			} else if err != nil {
				log.Errorf("%v", err)
			}
			log.Debugf("%s: %d vectors, %d skipped lines", doc.source, len(eph.Vectors), len(eph.Errors))
		}

		if csvOutput {
			if err := eph.Table().WriteCSV(os.Stdout); err != nil {
				return err
			}
		} else {
			eph.Write(os.Stdout)
		}

		if st != nil && doc.err == nil {
			if _, err := st.Save(ctx, doc.source, eph); err != nil {
				return fmt.Errorf("%s: %w", doc.source, err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources could not be retrieved", failed, len(docs))
	}
	return nil
}
