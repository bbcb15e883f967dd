package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/tsapigraph/internal/coverage"
	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/graph"
	"github.com/cwbudde/tsapigraph/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage <apiJsonPath|-> <samplesDir>",
	Short: "Analyze sample code against a previously extracted ApiIndex",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(c *cobra.Command, args []string) error {
	apiJSONPath, samplesDir := args[0], args[1]

	var r io.Reader
	if apiJSONPath == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(apiJSONPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			c.SilenceErrors = true
			return &cliExitError{code: 1}
		}
		defer f.Close()
		r = f
	}

	var idx graph.ApiIndex
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		fmt.Fprintln(os.Stderr, "Error: invalid ApiIndex JSON:", err)
		c.SilenceErrors = true
		return &cliExitError{code: 1}
	}

	log := diag.NewLog()
	u, err := usage.Analyze(context.Background(), samplesDir, idx, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		c.SilenceErrors = true
		return &cliExitError{code: diag.ExitCode(err)}
	}

	report := coverage.Format(idx, u)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
