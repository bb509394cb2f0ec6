package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x6d61/sqlif/internal/transport"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = newRootCmd()

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand is the same as "scan".
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlif",
		Short: "SQL injection finder",
		Long: `sqlif - SQL injection Finder

Finds error-based SQL injection by appending control characters to every
URL parameter and form field of the targets and looking for database error
messages in the responses. Targets come from --target, the config file or a
search engine query.

WARNING: Use this tool only against systems you have explicit permission to test.
Unauthorized access to computer systems is illegal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScan,
	}

	flags := root.PersistentFlags()

	// Target flags
	flags.StringArrayP("target", "t", nil, "Target URL to scan (repeatable)")
	flags.StringP("query", "q", "", "Search query used to discover targets")
	flags.StringP("engine", "e", "", "Search engine for --query (bing, duckduckgo, mojeek)")
	flags.IntP("pages", "p", 1, "Number of search result pages to scan")

	// Connection flags
	flags.Duration("timeout", 15*time.Second, "Request timeout")
	flags.String("user-agent", transport.DefaultUserAgent, "User-Agent for requests to targets")
	flags.Bool("random-agent", false, "Use a random User-Agent per request")
	flags.String("proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	flags.Float64("rate", 0, "Maximum requests per second (0 = unlimited)")
	flags.Int("threads", 0, "Concurrent requests (0 = all at once)")
	flags.StringSlice("tamper", nil, "Payload tamper scripts, comma-separated (space2comment, uppercase, appendnullbyte)")
	flags.Bool("all-dbms", false, "Also match MSSQL, Access, Oracle, DB2, Informix and Sybase errors")

	// Output flags
	flags.StringP("output-file", "o", "", "Output file (default YYYYmmdd_HHMMSS.txt)")
	flags.StringP("format", "f", "text", "Output format (text, json)")
	flags.IntP("verbose", "v", 0, "Verbosity level (0-3)")
	flags.Bool("no-color", false, "Disable colored output")

	// Configuration and history
	flags.String("config", "", "YAML configuration file")
	flags.String("session", "", "SQLite database recording scan runs")

	root.AddCommand(newScanCmd(), newHistoryCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlif %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
