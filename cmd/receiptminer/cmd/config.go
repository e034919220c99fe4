package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/receiptminer/internal/config"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate configuration",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate [file]",
	Short: "Write the default configuration as YAML",
	Long: `Write the default configuration to a file (default: receiptminer.yaml).

Every key can also be set through RECEIPTMINER_* environment variables, e.g.
RECEIPTMINER_SIMILARITY_ONE_TOKEN=85 or RECEIPTMINER_VALIDATION_MODE=reporting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			file = args[0]
		}
		if err := config.GenerateDefaultConfigFile(file); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", file)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := yaml.Marshal(GetConfig())
		if err != nil {
			return err
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the configuration search paths",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, p := range config.GetConfigSearchPaths() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "environment prefix: %s\n", config.EnvPrefix)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGenerateCmd, configShowCmd, configPathsCmd)
}
