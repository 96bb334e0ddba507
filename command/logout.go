package command

import (
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*LogoutCommand)(nil)
	_ cli.CommandAutocomplete = (*LogoutCommand)(nil)
)

type LogoutCommand struct {
	*BaseCommand
}

func (c *LogoutCommand) Synopsis() string {
	return "Erase the stored bearer token"
}

func (c *LogoutCommand) Help() string {
	helpText := `
Usage: billing logout

  Erases the token stored by "billing login". Requests made afterwards carry
  no bearer token unless BILLING_TOKEN is set.

      $ billing logout
`
	return strings.TrimSpace(helpText)
}

func (c *LogoutCommand) Flags() *FlagSets {
	return c.flagSet(FlagSetNone)
}

func (c *LogoutCommand) AutocompleteArgs() complete.Predictor {
	return nil
}

func (c *LogoutCommand) AutocompleteFlags() complete.Flags {
	return nil
}

func (c *LogoutCommand) Run(args []string) int {
	f := c.Flags()

	if err := c.parseFlags(f, args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	if args = f.Args(); len(args) > 0 {
		c.UI.Error(fmt.Sprintf("Too many arguments (expected 0, got %d)", len(args)))
		return 1
	}

	helper, err := c.TokenHelper()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error initializing token helper: %s", err))
		return 2
	}
	if err := helper.Erase(); err != nil {
		c.UI.Error(fmt.Sprintf("Error erasing token: %s", err))
		return 2
	}

	c.UI.Info("Success! The stored token was erased.")
	return 0
}
