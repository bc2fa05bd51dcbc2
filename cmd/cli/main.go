package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"logmerge/internal/merge"
)

// cliOptions holds the flag values of one invocation
type cliOptions struct {
	fileName    string
	extension   string
	workers     int
	writers     int
	capacity    int
	maxPathLen  int
	buffer      sizeValue
	useMMap     bool
	algorithm   string
	excludeDirs []string
	logFile     string
	logLevel    string
	progress    bool
	configPath  string
}

// errUsage marks invocations that only print usage; they exit 0.
var errUsage = errors.New("usage")

func newRootCmd() *cobra.Command {
	opts := &cliOptions{buffer: sizeValue(merge.DefaultBufferSize)}

	rootCmd := &cobra.Command{
		Use:   "logmerge -f <file name> -e <extension> [directory]",
		Short: "Merge unique files into one",
		Long: `Walks a directory tree, hashes every file with the given extension and
appends the content of each distinct file to a single output file.
Files whose content was already merged are skipped.

Example: logmerge -f merged.log -e .log /var/log/app`,
		Version:       versionString(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runMerge(cmd, opts, args)
			if errors.Is(err, errUsage) {
				return nil
			}
			return err
		},
	}

	// Malformed flags print usage and exit cleanly, like a missing flag.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		cmd.Usage()
		return nil
	})

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.fileName, "file", "f", "", "File name to output merged files")
	flags.StringVarP(&opts.extension, "ext", "e", "", "Case sensitive extension with dot, ex. .txt, .log")
	flags.IntVarP(&opts.workers, "workers", "w", merge.DefaultHashWorkers, "Number of hashing workers")
	flags.IntVar(&opts.writers, "writers", merge.DefaultWriteWorkers, "Number of writing workers")
	flags.IntVar(&opts.capacity, "capacity", merge.DefaultCapacity, "Maximum number of unique files waiting to be written")
	flags.IntVar(&opts.maxPathLen, "max-path-len", merge.DefaultMaxPathLen, "Longest path accepted, in bytes")
	flags.VarP(&opts.buffer, "buffer", "b", "Read buffer per writer, ex. 32MB")
	flags.BoolVar(&opts.useMMap, "mmap", true, "Memory-map files larger than the read buffer")
	flags.StringVarP(&opts.algorithm, "algo", "a", string(merge.BLAKE2b), "Digest algorithm: "+algorithmNames())
	flags.StringArrayVar(&opts.excludeDirs, "exclude-dir", nil, "Directory to skip (can be specified multiple times)")
	flags.StringVar(&opts.logFile, "log-file", "", "Write the log to this file instead of stderr")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warning, error")
	flags.BoolVarP(&opts.progress, "progress", "p", false, "Show a progress bar")
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML file with default flag values")

	return rootCmd
}

// versionString carries the build time next to the version, as --version
// prints it.
func versionString() string {
	return fmt.Sprintf("%s (built %s)", merge.Version, merge.BuildTime)
}

func algorithmNames() string {
	names := make([]string, len(merge.Algorithms))
	for i, alg := range merge.Algorithms {
		names[i] = string(alg)
	}
	return strings.Join(names, ", ")
}

// usage prints reason followed by the command usage
func usage(cmd *cobra.Command, reason string) error {
	fmt.Fprintln(cmd.ErrOrStderr(), reason)
	cmd.Usage()
	return errUsage
}

func runMerge(cmd *cobra.Command, opts *cliOptions, args []string) error {
	root := merge.DefaultRootDir
	if opts.configPath != "" {
		cfg, err := loadConfig(opts.configPath)
		if err != nil {
			return err
		}
		if err := cfg.apply(cmd.Flags()); err != nil {
			return err
		}
		if cfg.Root != "" {
			root = cfg.Root
		}
	}
	if len(args) > 0 {
		root = args[0]
	}

	if opts.fileName == "" {
		return usage(cmd, "Missing -f parameter!")
	}
	if opts.extension == "" {
		return usage(cmd, "Missing -e parameter!")
	}
	if !strings.HasPrefix(opts.extension, ".") {
		return usage(cmd, "Extension need to start with a dot!")
	}

	alg, err := merge.ParseAlgorithm(opts.algorithm)
	if err != nil {
		return err
	}
	level, err := merge.ParseLogLevel(opts.logLevel)
	if err != nil {
		return err
	}

	var logger *merge.Logger
	if opts.logFile != "" {
		logger, err = merge.OpenLogFile(opts.logFile, level)
		if err != nil {
			return err
		}
	} else {
		logger = merge.NewLogger(cmd.ErrOrStderr(), level)
	}
	defer logger.Close()

	mergeOpts := merge.Options{
		RootDir:      root,
		OutputPath:   opts.fileName,
		Extension:    opts.extension,
		HashWorkers:  opts.workers,
		WriteWorkers: opts.writers,
		Capacity:     opts.capacity,
		MaxPathLen:   opts.maxPathLen,
		BufferSize:   int64(opts.buffer),
		UseMMap:      opts.useMMap,
		Algorithm:    alg,
		ExcludeDirs:  opts.excludeDirs,
		Logger:       logger,
	}
	if mergeOpts.HashWorkers <= 0 {
		mergeOpts.HashWorkers = runtime.NumCPU()
	}

	if opts.progress {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Merging"),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionShowCount(),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		mergeOpts.OnWritten = func(_ string, n int64) {
			bar.Add64(n)
		}
		defer bar.Finish()
	}

	stats, err := merge.Run(cmd.Context(), mergeOpts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nMerge interrupted by user")
		}
		return err
	}

	printSummary(cmd.OutOrStdout(), opts.fileName, stats)
	return nil
}

func printSummary(w io.Writer, output string, stats merge.Snapshot) {
	fmt.Fprintf(w, "Merged %d unique files (%s) into %s\n", stats.Written, formatSize(stats.BytesWritten), output)
	fmt.Fprintf(w, "Scanned: %d, duplicates: %d, empty: %d\n", stats.Scanned, stats.Duplicates, stats.Empty)
	if failures := stats.Failures(); failures > 0 {
		fmt.Fprintf(w, "Skipped after errors: %d (hash %d, read %d, write %d, arena full %d, path too long %d)\n",
			failures, stats.HashFailures, stats.ReadFailures, stats.WriteFailures, stats.Dropped, stats.TooLong)
	}
}

func main() {
	// Handle Ctrl+C
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCmd()
	if err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(versionString()),
		fang.WithCommit(merge.GitCommit),
	); err != nil {
		os.Exit(1)
	}
}
