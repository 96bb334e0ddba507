package command

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/posener/complete"
	"github.com/saasbill/billing/api"
)

type requestMethod struct {
	name     string
	method   string
	synopsis string
	hasBody  bool
}

var requestMethods = []requestMethod{
	{name: "get", method: http.MethodGet, synopsis: "Read a resource or a collection"},
	{name: "head", method: http.MethodHead, synopsis: "Check a resource without reading its body"},
	{name: "delete", method: http.MethodDelete, synopsis: "Delete a resource"},
	{name: "post", method: http.MethodPost, synopsis: "Create a resource", hasBody: true},
	{name: "put", method: http.MethodPut, synopsis: "Replace a resource", hasBody: true},
	{name: "patch", method: http.MethodPatch, synopsis: "Update fields of a resource", hasBody: true},
}

var (
	_ cli.Command             = (*RequestCommand)(nil)
	_ cli.CommandAutocomplete = (*RequestCommand)(nil)
)

// RequestCommand sends one request with a fixed method.
type RequestCommand struct {
	*BaseCommand

	method requestMethod
}

func (c *RequestCommand) Synopsis() string {
	return c.method.synopsis
}

func (c *RequestCommand) Help() string {
	dataHelp := "query parameters"
	if c.method.hasBody {
		dataHelp = "JSON body fields"
	}

	helpText := fmt.Sprintf(`
Usage: billing %[1]s [options] PATH [DATA K=V...]

  Sends a %[2]s request to PATH, relative to the API base. Data is given as
  key=value pairs and is sent as %[3]s. A value of "@path" reads the value
  from a file and "-" reads it from stdin. A bare "-" or "@path" argument is
  read as a JSON object.

      $ billing %[1]s /invoices/ status=draft

  Errors returned by the server are rendered as messages. Fields of the form
  selected with -form are listed separately.

`, c.method.name, c.method.method, dataHelp) + c.Flags().Help()

	return strings.TrimSpace(helpText)
}

func (c *RequestCommand) Flags() *FlagSets {
	return c.flagSet(FlagSetHTTP | FlagSetRequest | FlagSetOutputFormat)
}

func (c *RequestCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictAnything
}

func (c *RequestCommand) AutocompleteFlags() complete.Flags {
	return c.Flags().Completions()
}

func (c *RequestCommand) Run(args []string) int {
	f := c.Flags()

	if err := c.parseFlags(f, args); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	args = f.Args()
	if len(args) < 1 {
		c.UI.Error(fmt.Sprintf("Not enough arguments (expected 1+, got %d)", len(args)))
		return 1
	}

	path := ensureLeadingSlash(args[0])

	data, err := parseArgsData(c.stdin, args[1:])
	if err != nil {
		c.UI.Error(fmt.Sprintf("Failed to parse K=V data: %s", err))
		return 1
	}

	client, err := c.Client()
	if err != nil {
		c.UI.Error(err.Error())
		return 2
	}

	form, err := c.form()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	opts := api.Options{Form: form}
	switch {
	case len(c.flagFiles) > 0:
		if !c.method.hasBody {
			c.UI.Error(fmt.Sprintf("-%s is not supported by %s", flagNameFile, c.method.name))
			return 1
		}
		mp, err := parseFileArgs(c.flagFiles, data)
		if err != nil {
			c.UI.Error(err.Error())
			return 1
		}
		opts.Data = mp
	case len(data) > 0:
		opts.Data = data
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	resp, err := client.Send(ctx, c.method.method, path, opts)
	c.logMetrics()
	if err != nil {
		// Server errors were already rendered by the failure handler.
		if resp == nil {
			c.UI.Error(fmt.Sprintf("Error sending %s %s: %s", c.method.method, path, err))
		}
		return 2
	}

	if resp.Data == nil {
		if c.method.method == http.MethodHead {
			c.UI.Output(resp.Status)
			return 0
		}
		c.UI.Info(fmt.Sprintf("Success! %s %s returned %d.", c.method.method, path, resp.StatusCode))
		return 0
	}

	return OutputData(c.UI, c.outputFormat(), resp.Data)
}

// logMetrics logs what the in-memory metrics sink recorded, if telemetry is
// configured.
func (c *BaseCommand) logMetrics() {
	if c.metrics == nil {
		return
	}
	for name, v := range c.metrics.Summary() {
		c.Logger().Debug("metric", "name", name, "value", v)
	}
}
