package command

import (
	"strings"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"
	"github.com/saasbill/billing/version"
)

var (
	_ cli.Command             = (*VersionCommand)(nil)
	_ cli.CommandAutocomplete = (*VersionCommand)(nil)
)

// VersionCommand is a Command implementation prints the version.
type VersionCommand struct {
	*BaseCommand

	VersionInfo *version.VersionInfo
}

func (c *VersionCommand) Synopsis() string {
	return "Prints the billing CLI version"
}

func (c *VersionCommand) Help() string {
	helpText := `
Usage: billing version

  Prints the version of this billing CLI. This does not print the target
  server version.

  Print the version:

      $ billing version

  There are no arguments or flags to this command. Any additional arguments or
  flags are ignored.
`
	return strings.TrimSpace(helpText)
}

func (c *VersionCommand) Flags() *FlagSets {
	return nil
}

func (c *VersionCommand) AutocompleteArgs() complete.Predictor {
	return nil
}

func (c *VersionCommand) AutocompleteFlags() complete.Flags {
	return nil
}

func (c *VersionCommand) Run(_ []string) int {
	info := c.VersionInfo
	if info == nil {
		info = version.GetVersion()
	}
	out := info.FullVersionNumber(true)
	c.UI.Output(out)
	return 0
}
