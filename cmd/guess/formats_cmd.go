package main

import (
	"fmt"
	"strings"

	"github.com/pchchv/guess"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(formatsCmd())
}

func formatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the known formats",
		Long:  "List every known format with the detectors that report it and whether it can be decoded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}

			fmt.Printf("%-10s %-8s %s\n", "FORMAT", "DECODE", "DETECTORS")
			for _, f := range guess.AllFormats() {
				var detectors []string
				for _, d := range reg.Detectors() {
					for _, df := range d.Formats() {
						if df == f {
							detectors = append(detectors, detectorName(d))
							break
						}
					}
				}

				decodable := "-"
				if _, ok := reg.Decoder(f); ok {
					decodable = "yes"
				}

				covered := strings.Join(detectors, ",")
				if covered == "" {
					covered = "-"
				}

				fmt.Printf("%-10s %-8s %s\n", f, decodable, covered)
			}

			return nil
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}

func detectorName(d guess.Detector) string {
	switch d.(type) {
	case guess.ArchiveDetector:
		return "archive"
	case *guess.RuleDetector:
		return "rules"
	case *guess.SignatureDetector:
		return "signatures"
	default:
		return fmt.Sprintf("%T", d)
	}
}
