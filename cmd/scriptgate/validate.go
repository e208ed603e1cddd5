package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlanticdynamic/scriptgate/internal/config"
	"github.com/urfave/cli/v3"
)

var validateCmd = &cli.Command{
	Name:    "validate",
	Aliases: []string{"lint"},
	Usage:   "Validate a manifest file",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "tree",
			Aliases: []string{"t"},
			Usage:   "Show detailed tree view of the validated manifest",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the manifest file",
		},
	},
	Suggest: true,
	Action:  validateAction,
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		if cmd.Args().Len() < 1 {
			return fmt.Errorf(
				"manifest file path required (use the --config flag, or provide the manifest file as positional argument)",
			)
		}
		configPath = cmd.Args().Get(0)
	}

	cfg, err := validateLocal(configPath)
	if err != nil {
		return err
	}
	fmt.Printf("Manifest file %s is valid\n", configPath)

	if cmd.Bool("tree") {
		// Use the Stringer interface to print the manifest in a fancy tree format
		fmt.Println(cfg)
		return nil
	}

	fmt.Println(renderConfigSummary(configPath, cfg))
	return nil
}

func validateLocal(configPath string) (*config.Config, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return cfg, nil
}

// renderConfigSummary creates a formatted summary string for the manifest
func renderConfigSummary(path string, cfg *config.Config) string {
	var summary strings.Builder

	summary.WriteString("\nManifest Summary:\n")
	summary.WriteString(fmt.Sprintf("- Path: %s\n", path))
	summary.WriteString(fmt.Sprintf("- Version: %s\n", cfg.Version))
	summary.WriteString(fmt.Sprintf("- Plugins: %d\n", len(cfg.Plugins)))
	summary.WriteString(fmt.Sprintf("- Experiments: %d\n", len(cfg.Experiments)))
	summary.WriteString("\nUse --tree for a more detailed view of the manifest.")

	return summary.String()
}
