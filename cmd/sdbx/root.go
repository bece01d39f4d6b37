package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Giulio2002/sdbx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Global flags
	verbose     bool
	quiet       bool
	jsonOut     bool
	configPath  string
	noSubdir    bool
	readOnly    bool
	maxDBs      int
	mapSizeFlag sizeValue
)

// sizeValue parses byte counts with optional k, m or g suffixes.
type sizeValue int64

func (s *sizeValue) String() string {
	return strconv.FormatInt(int64(*s), 10)
}

func (s *sizeValue) Set(v string) error {
	mult := int64(1)
	lower := strings.ToLower(strings.TrimSpace(v))
	switch {
	case strings.HasSuffix(lower, "k"):
		mult, lower = 1<<10, strings.TrimSuffix(lower, "k")
	case strings.HasSuffix(lower, "m"):
		mult, lower = 1<<20, strings.TrimSuffix(lower, "m")
	case strings.HasSuffix(lower, "g"):
		mult, lower = 1<<30, strings.TrimSuffix(lower, "g")
	}
	n, err := strconv.ParseInt(lower, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q", v)
	}
	if n < 0 {
		return fmt.Errorf("size must not be negative")
	}
	*s = sizeValue(n * mult)
	return nil
}

func (s *sizeValue) Type() string {
	return "size"
}

func addSizeFlag(fs *pflag.FlagSet, p *sizeValue, name, usage string) {
	fs.Var(p, name, usage)
}

var rootCmd = &cobra.Command{
	Use:   "sdbx",
	Short: "Inspect and manage sdbx environments",
	Long: `sdbx is a tool for inspecting and manipulating key-value environments.
It reports statistics, dumps and loads records, copies environments and
offers an interactive shell for poking at individual keys.`,
	SilenceUsage: true,
	Version:      version,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Config file (JSONC); defaults to sdbx.json inside the environment")
	rootCmd.PersistentFlags().
		BoolVar(&noSubdir, "no-subdir", false, "Treat the environment path as the data file itself")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "Open the environment read-only")
	rootCmd.PersistentFlags().IntVar(&maxDBs, "max-dbs", 0, "Named database limit (overrides config)")
	addSizeFlag(rootCmd.PersistentFlags(), &mapSizeFlag,
		"map-size", "Pin the data file size, with optional k/m/g suffix (overrides config)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEnv opens the environment at path, honoring the config file and
// global flags. Commands that only read pass readonly=true so a writer
// in another process stays unblocked. When the path is an existing
// regular file the single-file layout is selected automatically.
func openEnv(path string, readonly bool) (*sdbx.Env, error) {
	cfg, err := loadConfig(configPath, path)
	if err != nil {
		return nil, err
	}
	opts := cfg.envOptions()
	if maxDBs > 0 {
		opts.MaxDBs = maxDBs
	}
	if mapSizeFlag > 0 {
		opts.MapSize = int64(mapSizeFlag)
	}
	if noSubdir {
		opts.Flags |= sdbx.NoSubdir
	}
	if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
		opts.Flags |= sdbx.NoSubdir
	}
	if readonly || readOnly {
		opts.Flags |= sdbx.ReadOnly
	}
	if verbose {
		sdbx.SetLogger(func(msg string, args ...any) {
			fmt.Fprintf(os.Stderr, msg+"\n", args...)
		}, sdbx.LogLvlVerbose)
	}
	printVerbose("Opening environment: %s\n", path)
	env, err := sdbx.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open environment %s: %w", path, err)
	}
	return env, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// parseBytes interprets a command line argument as raw bytes, decoding
// hex when asHex is set.
func parseBytes(s string, asHex bool) ([]byte, error) {
	if asHex {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", s, err)
		}
		return b, nil
	}
	return []byte(s), nil
}

// formatBytes renders bytes as text when printable, hex otherwise.
func formatBytes(b []byte) string {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "0x" + hex.EncodeToString(b)
		}
	}
	return string(b)
}
