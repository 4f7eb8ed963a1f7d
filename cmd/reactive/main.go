package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactive/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦═╗┌─┐┌─┐┌─┐┌┬┐┬┬  ┬┌─┐
  ╠╦╝├┤ ├─┤│   │ ││└┐┌┘├┤
  ╩╚═└─┘┴ ┴└─┘ ┴ ┴ └┘ └─┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.CodeOf(err) != "" {
			errors.PrintError(err)
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reactive",
		Short: "Run and inspect a fine-grained reactive runtime",
		Long: `reactive hosts a signal/effect runtime behind an inspection server.

Commands:

  • init writes a default reactive.json
  • serve runs a demo workload with metrics, tracing and devtools
  • bench measures signal, effect and scope throughput`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		initCmd(),
		serveCmd(),
		benchCmd(),
		versionCmd(),
	)

	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
