package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/skycrawl/internal/config"
)

//go:embed templates/skycrawl.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented skycrawl configuration file",
		Long: `Init writes a .skycrawl configuration file with every setting documented.

The file sets the service and account to log in with, the default crawl
settings and, commented out, examples of per-root overrides. The password is
never read from the file; export ATP_PASSWORD instead.

Examples:
  # Create .skycrawl in the current directory
  skycrawl init

  # Create the config in the XDG config directory
  skycrawl init -o ~/.config/skycrawl/config.yaml

  # Overwrite an existing file
  skycrawl init -f

  # Print the template without writing a file
  skycrawl init --print`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Path of the configuration file to write")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")
	cmd.Flags().Bool("print", false, "Print the template to stdout instead of writing a file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	printOnly, err := cmd.Flags().GetBool("print")
	if err != nil {
		return err
	}
	if printOnly {
		_, err := out.Write(configTemplate)
		return err
	}

	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if err := writeConfigTemplate(path, force); err != nil {
		return err
	}
	return printInitHints(out, path)
}

// writeConfigTemplate writes the template to path with owner-only
// permissions, creating parent directories.
func writeConfigTemplate(path string, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, configTemplate, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

func printInitHints(w io.Writer, path string) error {
	_, err := fmt.Fprintf(w, `Created configuration file: %s

Edit it to set the account to log in with, the crawl depth and failure
policy, and settings for individual roots.

Set ATP_PASSWORD to an app password before running 'skycrawl crawl'.
`, path)
	return err
}
