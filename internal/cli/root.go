// Package cli implements the stagectl CLI commands.
package cli

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	// Import artifact backends to register them via init()
	_ "github.com/launchpath/stagectl/pkg/artifact/backend/azurerm"
	_ "github.com/launchpath/stagectl/pkg/artifact/backend/gcs"
	_ "github.com/launchpath/stagectl/pkg/artifact/backend/local"
	_ "github.com/launchpath/stagectl/pkg/artifact/backend/s3"

	// Import stack engines to register them via init()
	_ "github.com/launchpath/stagectl/pkg/stack/cloudformation"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stagectl",
	Short: "Deploy cloud application infrastructure in verified stages",
	Long: `stagectl provisions cloud application infrastructure through a fixed
sequence of stages (app, edge, release), each gated on the artifacts the
previous stage produced.

Every stage is idempotent: re-running a completed stage is a no-op, and
an interrupted stage resumes from the last completed step.`,
	// Errors are rendered by fail() with their remediation text.
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stagectl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "local", "Artifact backend type (local, s3, gcs, azurerm)")
	rootCmd.PersistentFlags().StringArray("backend-config", nil, "Backend configuration (key=value)")
	rootCmd.PersistentFlags().String("prefix", "", "Resource name prefix shared by every stage")
	rootCmd.PersistentFlags().String("region", "us-east-1", "Provider region")
	rootCmd.PersistentFlags().String("infra-profile", "", "Credential profile for the infrastructure account")
	rootCmd.PersistentFlags().String("target-profile", "", "Credential profile for the target (DNS) account")

	// Bind to viper
	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("prefix", rootCmd.PersistentFlags().Lookup("prefix"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("infra-profile", rootCmd.PersistentFlags().Lookup("infra-profile"))
	_ = viper.BindPFlag("target-profile", rootCmd.PersistentFlags().Lookup("target-profile"))
	viper.SetEnvPrefix("STAGECTL")
	// Dashed keys like infra-profile map to STAGECTL_INFRA_PROFILE.
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newRollbackCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in home directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.stagectl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// Read config file if it exists
	_ = viper.ReadInConfig()
}

func setupLogging() error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger
	return nil
}
