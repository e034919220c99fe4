package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/receiptminer/internal/config"
	"github.com/MeKo-Tech/receiptminer/internal/version"
)

// viperKeyAnnotation marks a flag as an override of a config key.
const viperKeyAnnotation = "receiptminer_config_key"

var (
	// Configuration loader of the running command.
	configLoader *config.Loader
	// Configuration of the running command.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// .env files loaded before the configuration.
	envFiles []string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "receiptminer",
	Short: "Extract structured records from fiscal receipt images",
	Long: `receiptminer turns photographed or scanned e-kassa fiscal receipts into
structured records: general information, line items and payment details,
checked for arithmetic consistency.

Receipts can come from image files, PDFs, QR photos or fiscal codes looked
up on the monitoring service.

Examples:
  receiptminer image receipt.jpg
  receiptminer pdf scans.pdf --pages 1-3 --format json
  receiptminer fetch 7Hc3AbXy --format yaml
  receiptminer batch receipts/ --recursive --workers 8 --format csv
  receiptminer serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			ver, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "receiptminer version %s\n", ver)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), globalConfig)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts cancel the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/receiptminer, /etc/receiptminer)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to load before the configuration")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	bindFlag(rootCmd.PersistentFlags(), "verbose", "verbose")
	bindFlag(rootCmd.PersistentFlags(), "log-level", "log_level")
}

// bindFlag records that flag overrides the config key. The binding is
// applied to a fresh viper instance when a command runs.
func bindFlag(flags *pflag.FlagSet, flag, key string) {
	if err := flags.SetAnnotation(flag, viperKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// bindAnnotatedFlags binds every annotated flag visible to cmd.
func bindAnnotatedFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error
	bind := func(f *pflag.Flag) {
		keys, ok := f.Annotations[viperKeyAnnotation]
		if !ok || len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return bindErr
}

// initConfig loads .env files, then the configuration file, environment
// and flags of the running command.
func initConfig(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return err
	}

	v := viper.New()
	if err := bindAnnotatedFlags(cmd, v); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	configLoader = config.NewLoaderWith(v)

	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	return nil
}

// setupLogging installs a JSON handler at the configured level. Logs go to
// stderr so stdout carries only command output.
func setupLogging(w io.Writer, cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// GetConfig returns the configuration of the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the configuration loader of the running command.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoaderWith(viper.New())
	}
	return configLoader
}
