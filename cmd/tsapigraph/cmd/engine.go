package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/tsapigraph/internal/adapter"
	"github.com/cwbudde/tsapigraph/internal/assembler"
	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/extraction"
)

var (
	engineJSON         bool
	engineStub         bool
	enginePretty       bool
	engineMode         string
	engineDtsRoot      string
	enginePackageJSON  string
	engineCrossLangMap string
)

var engineCmd = &cobra.Command{
	Use:   "engine <rootDir>",
	Short: "Run extraction over a package root and print the resulting graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runEngine,
}

func init() {
	engineCmd.Flags().BoolVar(&engineJSON, "json", false, "print the ApiIndex as JSON")
	engineCmd.Flags().BoolVar(&engineStub, "stub", false, "print a one-line summary instead of the full graph")
	engineCmd.Flags().BoolVar(&enginePretty, "pretty", false, "pretty-print JSON output")
	engineCmd.Flags().StringVar(&engineMode, "mode", "source", "adapter mode: source or compiled")
	engineCmd.Flags().StringVar(&engineDtsRoot, "dts-root", "", "declarations root for compiled mode")
	engineCmd.Flags().StringVar(&enginePackageJSON, "package-json", "", "path to a surface manifest (JSON or YAML)")
	engineCmd.Flags().StringVar(&engineCrossLangMap, "cross-language-map", "", "path to a CrossLanguageMap JSON document to join onto entity ids")
	rootCmd.AddCommand(engineCmd)
}

func runEngine(c *cobra.Command, args []string) error {
	rootDir := args[0]

	mode := adapter.ModeSource
	declRoot := rootDir
	switch engineMode {
	case "source":
	case "compiled":
		mode = adapter.ModeCompiled
		if engineDtsRoot != "" {
			declRoot = engineDtsRoot
		}
	default:
		return fmt.Errorf("unknown --mode %q: want \"source\" or \"compiled\"", engineMode)
	}

	cfg := extraction.Config{
		Mode:                 mode,
		DeclarationsRoot:     declRoot,
		ManifestPath:         enginePackageJSON,
		CrossLanguageMapPath: engineCrossLangMap,
	}

	ctx := extraction.New(cfg)
	idx, err := ctx.Run(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		c.SilenceErrors = true
		return &cliExitError{code: diag.ExitCode(err)}
	}

	if engineStub {
		fmt.Printf("%d module(s), %d diagnostic(s)\n", len(idx.Modules), len(idx.Diagnostics))
		return nil
	}

	if engineJSON {
		out, err := assembler.MarshalJSON(idx, enginePretty)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("%d module(s) extracted\n", len(idx.Modules))
	return nil
}

// cliExitError carries an explicit process exit code out of a cobra
// RunE without cobra itself printing a second "Error:" line, since the
// command already printed its own diagnostic.
type cliExitError struct{ code int }

func (e *cliExitError) Error() string { return "" }

func (e *cliExitError) ExitCode() int { return e.code }
