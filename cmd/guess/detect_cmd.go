package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pchchv/guess"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(detectCmd())
}

func detectCmd() *cobra.Command {
	var configPath string
	var formats string
	var maxRecursion int
	var decode bool
	var outputPath string

	cmd := &cobra.Command{
		Use:   "detect [files...]",
		Short: "Detect the format chain of files",
		Long: `Detect the format of each input and of the encodings nested inside it.

Standard input is read when no file is given, or for "-".
With --decode the decoded content of a single input is written to --output
(standard output by default) and the chain is reported on standard error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("formats") {
				cfg.Formats = formats
			}
			if cmd.Flags().Changed("max-recursion") {
				cfg.MaxRecursion = maxRecursion
			}

			enabled, err := cfg.EnabledFormats()
			if err != nil {
				return err
			}
			opts, err := cfg.Options()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				args = []string{"-"}
			}
			if decode && len(args) > 1 {
				return errors.New("--decode accepts a single input")
			}

			report := io.Writer(os.Stdout)
			var out io.Writer
			if decode {
				report = os.Stderr
				out = os.Stdout
				if outputPath != "" {
					f, err := os.Create(outputPath)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
			}

			failed := 0
			for _, name := range args {
				if err := detectOne(name, enabled, opts, report, out); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d inputs failed", failed, len(args))
			}

			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&formats, "formats", "f", "", "Comma separated formats to detect (default all)")
	cmd.Flags().IntVarP(&maxRecursion, "max-recursion", "r", 0, "Number of nested levels to inspect")
	cmd.Flags().BoolVarP(&decode, "decode", "d", false, "Write the decoded content")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file for --decode (default stdout)")

	return cmd
}

// detectOne prints the chain of one input and copies its decoded content to out when out is not nil.
func detectOne(name string, enabled []guess.Format, opts guess.Options, report, out io.Writer) error {
	var src io.Reader
	if name == "-" {
		// the stream closes its source, stdin stays open
		src = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		src = f
	}

	s := guess.New(src, enabled, opts)
	defer s.Close()

	if out != nil {
		if err := s.Decode(true); err != nil {
			return err
		}
	}

	chain, err := s.Formats()
	if err != nil {
		return err
	}

	names := make([]string, len(chain))
	for i, id := range chain {
		names[i] = id.String()
	}
	fmt.Fprintf(report, "%s: %s\n", name, strings.Join(names, " > "))

	if out != nil {
		if _, err := io.Copy(out, s); err != nil {
			return err
		}
	}

	return nil
}
