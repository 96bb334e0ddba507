package command

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*LoginCommand)(nil)
	_ cli.CommandAutocomplete = (*LoginCommand)(nil)
)

type LoginCommand struct {
	*BaseCommand

	flagNoStore bool
	flagVerify  string
}

func (c *LoginCommand) Synopsis() string {
	return "Store a bearer token for later requests"
}

func (c *LoginCommand) Help() string {
	helpText := `
Usage: billing login [options] [TOKEN]

  Stores TOKEN with the token helper so that later commands send it as a
  bearer token. If TOKEN is "-" or omitted, it is read from stdin.

      $ billing login 9f2c1e...

  When a bearer token is present, requests no longer carry a CSRF token.

` + c.Flags().Help()

	return strings.TrimSpace(helpText)
}

func (c *LoginCommand) Flags() *FlagSets {
	set := c.flagSet(FlagSetHTTP)

	f := set.NewFlagSet("Command Options")

	f.BoolVar(&BoolVar{
		Name:    "no-store",
		Target:  &c.flagNoStore,
		Default: false,
		Usage: "Do not persist the token to the token helper. The token " +
			"is only verified.",
	})

	f.StringVar(&StringVar{
		Name:       "verify",
		Target:     &c.flagVerify,
		Completion: complete.PredictAnything,
		Usage: "Path requested with the new token before it is stored. " +
			"The token is not stored when the request fails.",
	})

	return set
}

func (c *LoginCommand) AutocompleteArgs() complete.Predictor {
	return nil
}

func (c *LoginCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *LoginCommand) Run(args []string) int {
	f := c.Flags()

	if err := c.parseFlags(f, args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	args = f.Args()
	if len(args) > 1 {
		c.UI.Error(fmt.Sprintf("Too many arguments (expected 0-1, got %d)", len(args)))
		return 1
	}

	var token string
	if len(args) == 1 && args[0] != "-" {
		token = strings.TrimSpace(args[0])
	} else {
		stdin := c.stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			c.UI.Error(fmt.Sprintf("Failed to read token from stdin: %s", err))
			return 1
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		c.UI.Error("Token must not be empty")
		return 1
	}

	if c.flagVerify != "" {
		client, err := c.Client()
		if err != nil {
			c.UI.Error(err.Error())
			return 2
		}
		client.SetToken(token)

		ctx, cancel := c.requestContext()
		defer cancel()

		if _, err := client.Get(ctx, ensureLeadingSlash(c.flagVerify)); err != nil {
			c.UI.Error(fmt.Sprintf("Token verification failed: %s", err))
			return 2
		}
	}

	if c.flagNoStore {
		if c.flagVerify != "" {
			c.UI.Info("Success! The token was verified and not stored.")
		} else {
			c.UI.Info("The token was not stored.")
		}
		return 0
	}

	helper, err := c.TokenHelper()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error initializing token helper: %s", err))
		return 2
	}
	if err := helper.Store(token); err != nil {
		c.UI.Error(fmt.Sprintf("Error storing token: %s", err))
		return 2
	}

	c.UI.Info(fmt.Sprintf("Success! The token was stored in %s.", helper.Path()))
	return 0
}
