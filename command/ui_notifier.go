package command

import (
	"fmt"
	"sort"

	"github.com/mitchellh/cli"
	"github.com/saasbill/billing/api"
)

var _ api.Notifier = (*UINotifier)(nil)

// UINotifier renders response messages on the terminal. Field errors are
// listed under a heading, sorted by field name.
type UINotifier struct {
	UI cli.Ui
}

func (n *UINotifier) ShowMessages(messages []string, style string) {
	for _, m := range messages {
		switch style {
		case api.StyleError:
			n.UI.Error(m)
		case api.StyleSuccess:
			n.UI.Info(m)
		default:
			n.UI.Output(m)
		}
	}
}

func (n *UINotifier) ShowFieldErrors(fieldErrors map[string]string) {
	if len(fieldErrors) == 0 {
		return
	}

	fields := make([]string, 0, len(fieldErrors))
	for f := range fieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	n.UI.Error("Field errors:")
	for _, f := range fields {
		n.UI.Error(fmt.Sprintf("  %s: %s", f, fieldErrors[f]))
	}
}
