package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/cli"
)

const (
	EnvBillingCLINoColor  = `BILLING_CLI_NO_COLOR`
	EnvBillingFormat      = `BILLING_FORMAT`
	EnvBillingConfigPath  = `BILLING_CONFIG_PATH`
	flagNameAddress       = "address"
	flagNameAPIBase       = "api-base"
	flagNameCACert        = "ca-cert"
	flagNameCAPath        = "ca-path"
	flagNameClientKey     = "client-key"
	flagNameClientCert    = "client-cert"
	flagNameTLSSkipVerify = "tls-skip-verify"
	flagTLSServerName     = "tls-server-name"
	flagNameConfig        = "config"
	flagNamePage          = "page"
	flagNameForm          = "form"
	flagNameFile          = "file"
)

func initCommands(ui cli.Ui, runOpts *RunOptions) map[string]cli.CommandFactory {
	getBaseCommand := func() *BaseCommand {
		return &BaseCommand{
			UI:          ui,
			tokenHelper: runOpts.TokenHelper,
			flagAddress: runOpts.Address,
			stdin:       runOpts.Stdin,
			stderr:      runOpts.Stderr,
		}
	}

	commands := map[string]cli.CommandFactory{
		"batch": func() (cli.Command, error) {
			return &BatchCommand{
				BaseCommand: getBaseCommand(),
			}, nil
		},
		"login": func() (cli.Command, error) {
			return &LoginCommand{
				BaseCommand: getBaseCommand(),
			}, nil
		},
		"logout": func() (cli.Command, error) {
			return &LogoutCommand{
				BaseCommand: getBaseCommand(),
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &VersionCommand{
				BaseCommand: getBaseCommand(),
			}, nil
		},
	}

	for _, method := range requestMethods {
		method := method
		commands[method.name] = func() (cli.Command, error) {
			return &RequestCommand{
				BaseCommand: getBaseCommand(),
				method:      method,
			}, nil
		}
	}

	return commands
}

// MakeShutdownCh returns a channel that is closed on the first interrupt or
// termination signal.
func MakeShutdownCh() chan struct{} {
	resultCh := make(chan struct{})

	shutdownCh := make(chan os.Signal, 4)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		close(resultCh)
	}()
	return resultCh
}

// shutdownContext returns a context cancelled when shutdownCh closes.
func shutdownContext(shutdownCh chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
