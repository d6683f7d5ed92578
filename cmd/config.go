package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/tui/theme"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the client configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSchemaCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration and where it came from",
		Long: `Shows the configuration after merging, in order:
1. Defaults
2. Global config (<config dir>/stratus.yml or .toml)
3. Project config (stratus.yml / stratus.toml, searched upwards)
4. Legacy .stratus.json next to the project config (port only)
5. STRATUS_HOST / STRATUS_PORT and --host / --port`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(struct {
					Sources []string       `json:"sources"`
					Config  *config.Config `json:"config"`
				}{loaded.Sources, loaded.Config}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			for _, src := range loaded.Sources {
				fmt.Fprintf(out, "# Source: %s\n", src)
			}
			if len(loaded.Sources) == 0 {
				fmt.Fprintln(out, "# Source: defaults")
			}
			data, err := yaml.Marshal(loaded.Config)
			if err != nil {
				return err
			}
			fmt.Fprint(out, string(data))
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for stratus.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Validate configuration files against the schema",
		Long: `Validates the given files, or the global and project configuration
files when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if len(files) == 0 {
				files = discoverConfigFiles()
			}
			if len(files) == 0 {
				return errors.ConfigNotFound(".")
			}

			validator, err := config.NewSchemaValidator()
			if err != nil {
				return err
			}

			t := theme.DefaultTheme
			out := cmd.OutOrStdout()
			failed := 0
			for _, file := range files {
				if err := validator.ValidateFile(file); err != nil {
					failed++
					fmt.Fprintf(out, "%s %s\n%v\n", t.Error.Render("✗"), file, err)
					continue
				}
				if _, err := config.Load(file); err != nil {
					failed++
					fmt.Fprintf(out, "%s %s\n%v\n", t.Error.Render("✗"), file, err)
					continue
				}
				fmt.Fprintf(out, "%s %s\n", t.Success.Render("✓"), file)
			}

			if failed > 0 {
				return errors.ConfigInvalid(fmt.Sprintf("%d of %d files failed validation", failed, len(files)))
			}
			return nil
		},
	}
}

func discoverConfigFiles() []string {
	var files []string
	if global := config.FindGlobalConfigFile(); global != "" {
		files = append(files, global)
	}
	if cwd, err := os.Getwd(); err == nil {
		if project, err := config.FindConfigFile(cwd); err == nil {
			files = append(files, project)
		}
	}
	return files
}
