package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/errwrap"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
	"github.com/saasbill/billing/api"
)

var (
	_ cli.Command             = (*BatchCommand)(nil)
	_ cli.CommandAutocomplete = (*BatchCommand)(nil)
)

type BatchCommand struct {
	*BaseCommand
}

func (c *BatchCommand) Synopsis() string {
	return "Send several requests and wait for all of them"
}

func (c *BatchCommand) Help() string {
	helpText := `
Usage: billing batch [options] FILE

  Sends every request listed in FILE concurrently. FILE holds a JSON array of
  objects with "method", "url" and optional "data" keys. Use "-" to read the
  list from stdin.

      $ billing batch requests.json

  The responses are printed in the order of the list once every request has
  succeeded. The first failing request is reported and the batch stops; the
  other responses are not printed.

` + c.Flags().Help()

	return strings.TrimSpace(helpText)
}

func (c *BatchCommand) Flags() *FlagSets {
	return c.flagSet(FlagSetHTTP | FlagSetOutputFormat)
}

func (c *BatchCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictFiles("*.json")
}

func (c *BatchCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *BatchCommand) Run(args []string) int {
	f := c.Flags()

	if err := c.parseFlags(f, args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	args = f.Args()
	switch {
	case len(args) < 1:
		c.UI.Error(fmt.Sprintf("Not enough arguments (expected 1, got %d)", len(args)))
		return 1
	case len(args) > 1:
		c.UI.Error(fmt.Sprintf("Too many arguments (expected 1, got %d)", len(args)))
		return 1
	}

	items, err := c.readItems(args[0])
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	if len(items) == 0 {
		c.UI.Error("No requests to send")
		return 1
	}

	client, err := c.Client()
	if err != nil {
		c.UI.Error(err.Error())
		return 2
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	responses, err := client.Multiple(ctx, items, nil, nil)
	c.logMetrics()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Batch failed: %s", err))
		return 2
	}

	out := make([]interface{}, len(responses))
	for i, resp := range responses {
		out[i] = map[string]interface{}{
			"method": items[i].Method,
			"url":    items[i].URL,
			"status": resp.StatusCode,
			"data":   resp.Data,
		}
	}

	return OutputData(c.UI, c.outputFormat(), out)
}

func (c *BatchCommand) readItems(path string) ([]api.BatchItem, error) {
	var r io.Reader
	if path == "-" {
		r = c.stdin
		if r == nil {
			r = os.Stdin
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, errwrap.Wrapf(fmt.Sprintf("failed to open %s: {{err}}", path), err)
		}
		defer f.Close()
		r = f
	}

	var items []api.BatchItem
	if err := decodeJSON(r, &items); err != nil {
		return nil, errwrap.Wrapf("failed to parse batch: {{err}}", err)
	}
	for i := range items {
		if items[i].Method == "" {
			items[i].Method = "GET"
		}
		items[i].Method = strings.ToUpper(items[i].Method)
	}
	return items, nil
}
