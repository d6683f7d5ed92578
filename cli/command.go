package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/logging"
)

// CommandOptions holds the flags every stratus command accepts.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
	Host       string
	Port       int
}

// NewStandardCommand creates a command carrying the standard stratus flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to a stratus.yml or stratus.toml file")
	cmd.PersistentFlags().String("host", "", "Server host, overriding the configuration")
	cmd.PersistentFlags().Int("port", 0, "Server port, overriding the configuration")

	return cmd
}

// GetOptions extracts the standard options from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
		Host:       host,
		Port:       port,
	}
}

// LoadConfig loads the configuration for cmd: the --config file when given,
// otherwise the layered configuration found from the working directory.
// --host and --port are applied last. The `logging` section, if any, is
// handed to the logging package before any component logger is created.
func LoadConfig(cmd *cobra.Command) (*config.Loaded, error) {
	opts := GetOptions(cmd)
	level := logrus.WarnLevel
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	bootstrap := NewLogger(WithOutput(cmd.ErrOrStderr()), WithLevel(level))

	var loaded *config.Loaded
	if opts.ConfigFile != "" {
		cfg, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		loaded = &config.Loaded{Config: cfg, Sources: []string{opts.ConfigFile}}
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		loaded, err = config.LoadFromWithLogger(cwd, bootstrap)
		if err != nil {
			return nil, err
		}
	}

	if opts.Host != "" {
		loaded.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		loaded.Server.Port = opts.Port
	}
	if err := loaded.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration validation failed")
	}

	var logCfg logging.Config
	if err := loaded.UnmarshalExtension("logging", &logCfg); err != nil {
		bootstrap.WithError(err).Warn("Ignoring invalid logging configuration")
		logCfg = logging.Config{}
	}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logging.Configure(logCfg)
	return loaded, nil
}

// GetLogger returns the CLI component logger adjusted for the command flags.
func GetLogger(cmd *cobra.Command) *logrus.Entry {
	entry := logging.NewLogger("stratus-cli")

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		entry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return entry
}
