package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-secure-stdlib/gatedwriter"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
	"github.com/saasbill/billing/api"
	"github.com/saasbill/billing/command/token"
	"github.com/saasbill/billing/helper/logging"
	"github.com/saasbill/billing/helper/metricsutil"
	"github.com/saasbill/billing/internalshared/configutil"
	"golang.org/x/time/rate"
)

const (
	// maxLineLength is the maximum width of any line.
	maxLineLength int = 78
)

type BaseCommand struct {
	UI cli.Ui

	flags     *FlagSets
	flagsOnce sync.Once

	flagAddress       string
	flagAPIBase       string
	flagCACert        string
	flagCAPath        string
	flagClientCert    string
	flagClientKey     string
	flagTLSServerName string
	flagTLSSkipVerify bool
	flagTimeout       time.Duration
	flagConfig        string
	flagLogLevel      string
	flagLogFormat     string

	flagFormat string

	flagPage  string
	flagForm  string
	flagFiles []string

	stdin  io.Reader
	stderr io.Writer

	// ShutdownCh cancels in-flight requests when closed.
	ShutdownCh chan struct{}

	tokenHelper token.TokenHelper

	client  *api.Client
	page    *api.Page
	logger  hclog.InterceptLogger
	logGate *gatedwriter.Writer
	metrics *metricsutil.MetricsHelper
}

// Client returns the HTTP API client. The client is cached on the command to
// save performance on future calls.
func (c *BaseCommand) Client() (*api.Client, error) {
	// Read the test client if present
	if c.client != nil {
		return c.client, nil
	}

	config := api.DefaultConfig()
	if err := config.Error; err != nil {
		return nil, errwrap.Wrapf("error reading environment: {{err}}", err)
	}

	fileConfig, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := c.setupLogger(fileConfig)
	if err != nil {
		return nil, err
	}
	config.Logger = logger

	if fileConfig != nil {
		if err := c.applyConfig(config, fileConfig); err != nil {
			return nil, err
		}
		// The environment wins over the file.
		if err := config.ReadEnvironment(); err != nil {
			return nil, errwrap.Wrapf("error reading environment: {{err}}", err)
		}
	}

	if c.flagAddress != "" {
		config.Address = c.flagAddress
	}
	if c.flagAPIBase != "" {
		config.APIBase = c.flagAPIBase
	}
	if c.flagTimeout != 0 {
		config.Timeout = c.flagTimeout
	}

	// If we need custom TLS configuration, then set it
	if c.flagCACert != "" || c.flagCAPath != "" || c.flagClientCert != "" ||
		c.flagClientKey != "" || c.flagTLSServerName != "" || c.flagTLSSkipVerify {
		t := &api.TLSConfig{
			CACert:        c.flagCACert,
			CAPath:        c.flagCAPath,
			ClientCert:    c.flagClientCert,
			ClientKey:     c.flagClientKey,
			TLSServerName: c.flagTLSServerName,
			Insecure:      c.flagTLSSkipVerify,
		}

		// Setup TLS config
		if err := config.ConfigureTLS(t); err != nil {
			return nil, errwrap.Wrapf("failed to setup TLS config: {{err}}", err)
		}
	}

	config.Notifier = &UINotifier{UI: c.UI}

	// Build the client
	client, err := api.NewClient(config)
	if err != nil {
		return nil, errwrap.Wrapf("failed to create client: {{err}}", err)
	}

	// Fall back to the stored token when the environment did not supply one.
	if client.Token() == "" {
		helper, err := c.TokenHelper()
		if err != nil {
			return nil, errwrap.Wrapf("failed to get token helper: {{err}}", err)
		}
		token, err := helper.Get()
		if err != nil {
			return nil, errwrap.Wrapf("failed to get token from token helper: {{err}}", err)
		}
		if token != "" {
			client.SetToken(token)
		}
	}

	if c.flagPage != "" {
		page, err := c.loadPage(c.flagPage)
		if err != nil {
			return nil, err
		}
		client.SetPage(page)
		c.page = page
	}

	if c.logGate != nil {
		c.logGate.Flush()
	}
	c.client = client

	return client, nil
}

// TokenHelper returns the token helper attached to the command.
func (c *BaseCommand) TokenHelper() (token.TokenHelper, error) {
	if c.tokenHelper != nil {
		return c.tokenHelper, nil
	}

	helper, err := token.NewInternalTokenHelper()
	if err != nil {
		return nil, err
	}
	c.tokenHelper = helper
	return helper, nil
}

// Logger returns the command logger. Before Client has been called, records
// are held back by the log gate.
func (c *BaseCommand) Logger() hclog.InterceptLogger {
	if c.logger == nil {
		if _, err := c.setupLogger(nil); err != nil {
			c.logger = hclog.NewInterceptLogger(&hclog.LoggerOptions{Output: io.Discard})
		}
	}
	return c.logger
}

func (c *BaseCommand) setupLogger(fileConfig *configutil.Config) (hclog.InterceptLogger, error) {
	if c.logger != nil {
		return c.logger, nil
	}

	levelRaw, formatRaw := c.flagLogLevel, c.flagLogFormat
	if fileConfig != nil {
		if levelRaw == "" {
			levelRaw = fileConfig.LogLevel
		}
		if formatRaw == "" {
			formatRaw = fileConfig.LogFormat
		}
	}

	level, err := logging.ParseLogLevel(levelRaw)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseLogFormat(formatRaw)
	if err != nil {
		return nil, err
	}

	stderr := c.stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	c.logGate = gatedwriter.NewWriter(stderr)
	c.logger = logging.NewLogger("billing", level, format, c.logGate)
	return c.logger, nil
}

func (c *BaseCommand) loadConfig() (*configutil.Config, error) {
	if c.flagConfig == "" {
		return nil, nil
	}

	config, err := configutil.LoadConfigFile(c.flagConfig)
	if err != nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("error loading configuration from %s: {{err}}", c.flagConfig), err)
	}

	for _, problem := range config.Validate(c.flagConfig) {
		c.UI.Warn(problem.String())
	}

	return config, nil
}

// applyConfig copies file settings onto the client configuration.
func (c *BaseCommand) applyConfig(config *api.Config, fileConfig *configutil.Config) error {
	if fileConfig.Address != "" {
		config.Address = fileConfig.Address
	}
	if fileConfig.APIBase != "" {
		config.APIBase = fileConfig.APIBase
	}
	if fileConfig.ClientTimeout != 0 {
		config.Timeout = fileConfig.ClientTimeout
	}
	if fileConfig.ProviderNotified != "" {
		config.ProviderNotified = fileConfig.ProviderNotified
	}
	if fileConfig.BatchConcurrency != 0 {
		config.BatchConcurrency = fileConfig.BatchConcurrency
	}
	if fileConfig.RateLimit != "" {
		limit, burst, err := api.ParseRateLimit(fileConfig.RateLimit)
		if err != nil {
			return errwrap.Wrapf("invalid rate_limit: {{err}}", err)
		}
		config.Limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}

	if t := fileConfig.TLS; t != nil {
		err := config.ConfigureTLS(&api.TLSConfig{
			CACert:        t.CACert,
			CAPath:        t.CAPath,
			ClientCert:    t.ClientCert,
			ClientKey:     t.ClientKey,
			TLSServerName: t.ServerName,
			Insecure:      t.Insecure,
			MinVersion:    t.MinVersion,
			CipherSuites:  t.CipherSuites,
		})
		if err != nil {
			return errwrap.Wrapf("failed to setup TLS config: {{err}}", err)
		}
	}

	if t := fileConfig.Telemetry; t != nil {
		helper, err := metricsutil.SetupTelemetry(metricsutil.TelemetryOptions{
			ServiceName:     "billing",
			MetricsPrefix:   t.MetricsPrefix,
			StatsdAddr:      t.StatsdAddr,
			StatsiteAddr:    t.StatsiteAddr,
			DisableHostname: t.DisableHostname,
		})
		if err != nil {
			return errwrap.Wrapf("failed to setup telemetry: {{err}}", err)
		}
		config.MetricSink = helper.Sink
		c.metrics = helper
	}

	return nil
}

func (c *BaseCommand) loadPage(path string) (*api.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("failed to open page %s: {{err}}", path), err)
	}
	defer f.Close()

	page, err := api.ParsePage(f)
	if err != nil {
		return nil, errwrap.Wrapf(fmt.Sprintf("failed to parse page %s: {{err}}", path), err)
	}
	return page, nil
}

// form returns the form selected with -form, if any.
func (c *BaseCommand) form() (*api.Form, error) {
	if c.flagForm == "" {
		return nil, nil
	}
	if c.page == nil {
		return nil, fmt.Errorf("-%s requires -%s", flagNameForm, flagNamePage)
	}
	form := c.page.Form(c.flagForm)
	if form == nil {
		return nil, fmt.Errorf("no form %q on page %s", c.flagForm, c.flagPage)
	}
	return form, nil
}

type FlagSetBit uint

const (
	FlagSetNone FlagSetBit = 1 << iota
	FlagSetHTTP
	FlagSetOutputFormat
	FlagSetRequest
)

// flagSet creates the flags for this command. The result is cached on the
// command to save performance on future calls.
func (c *BaseCommand) flagSet(bit FlagSetBit) *FlagSets {
	c.flagsOnce.Do(func() {
		set := NewFlagSets()

		// These flag sets will apply to all leaf subcommands.
		if bit&FlagSetHTTP != 0 {
			f := set.NewFlagSet("HTTP Options")

			// Defaults come from api.DefaultConfig.
			f.StringVar(&StringVar{
				Name:       flagNameAddress,
				Target:     &c.flagAddress,
				Default:    c.flagAddress,
				EnvVar:     api.EnvBillingAddress,
				Completion: complete.PredictAnything,
				Usage:      "Address of the billing server. Defaults to " + api.DefaultAddress + ".",
			})

			f.StringVar(&StringVar{
				Name:       flagNameAPIBase,
				Target:     &c.flagAPIBase,
				EnvVar:     api.EnvBillingAPIBase,
				Completion: complete.PredictAnything,
				Usage: "Path joined between the address and every request path. " +
					"Defaults to " + api.DefaultAPIBase + ".",
			})

			f.StringVar(&StringVar{
				Name:       flagNameCACert,
				Target:     &c.flagCACert,
				Default:    "",
				EnvVar:     api.EnvBillingCACert,
				Completion: complete.PredictFiles("*"),
				Usage: "Path on the local disk to a single PEM-encoded CA " +
					"certificate to verify the server's SSL certificate. This " +
					"takes precedence over -ca-path.",
			})

			f.StringVar(&StringVar{
				Name:       flagNameCAPath,
				Target:     &c.flagCAPath,
				Default:    "",
				EnvVar:     api.EnvBillingCAPath,
				Completion: complete.PredictDirs("*"),
				Usage: "Path on the local disk to a directory of PEM-encoded CA " +
					"certificates to verify the server's SSL certificate.",
			})

			f.StringVar(&StringVar{
				Name:       flagNameClientCert,
				Target:     &c.flagClientCert,
				Default:    "",
				EnvVar:     api.EnvBillingClientCert,
				Completion: complete.PredictFiles("*"),
				Usage: "Path on the local disk to a single PEM-encoded CA " +
					"certificate to use for TLS authentication to the server. " +
					"If this flag is specified, -client-key is also required.",
			})

			f.StringVar(&StringVar{
				Name:       flagNameClientKey,
				Target:     &c.flagClientKey,
				Default:    "",
				EnvVar:     api.EnvBillingClientKey,
				Completion: complete.PredictFiles("*"),
				Usage: "Path on the local disk to a single PEM-encoded private key " +
					"matching the client certificate from -client-cert.",
			})

			f.StringVar(&StringVar{
				Name:       flagTLSServerName,
				Target:     &c.flagTLSServerName,
				Default:    "",
				EnvVar:     api.EnvBillingTLSServerName,
				Completion: complete.PredictAnything,
				Usage: "Name to use as the SNI host when connecting to the " +
					"server via TLS.",
			})

			f.BoolVar(&BoolVar{
				Name:    flagNameTLSSkipVerify,
				Target:  &c.flagTLSSkipVerify,
				Default: false,
				EnvVar:  api.EnvBillingSkipVerify,
				Usage: "Disable verification of TLS certificates. Using this option " +
					"is highly discouraged as it decreases the security of data " +
					"transmissions to and from the server.",
			})

			f.DurationVar(&DurationVar{
				Name:       "client-timeout",
				Target:     &c.flagTimeout,
				Default:    0,
				EnvVar:     api.EnvBillingClientTimeout,
				Completion: complete.PredictAnything,
				Usage: "Timeout applied to every request. Zero lets a request " +
					"run for as long as the server keeps it open.",
			})

			f.StringVar(&StringVar{
				Name:       flagNameConfig,
				Target:     &c.flagConfig,
				Default:    "",
				EnvVar:     EnvBillingConfigPath,
				Completion: complete.PredictFiles("*.hcl"),
				Usage:      "Path to an HCL or JSON client configuration file.",
			})

			f.StringVar(&StringVar{
				Name:       globalFlagLogLevel,
				Target:     &c.flagLogLevel,
				EnvVar:     logging.EnvLogLevel,
				Completion: complete.PredictSet("trace", "debug", "info", "warn", "error", "off"),
				Usage: "Log verbosity level. Supported values (in order of " +
					"detail) are \"trace\", \"debug\", \"info\", \"warn\", and \"error\".",
			})

			f.StringVar(&StringVar{
				Name:       globalFlagLogFormat,
				Target:     &c.flagLogFormat,
				EnvVar:     logging.EnvLogFormat,
				Completion: complete.PredictSet("standard", "json"),
				Usage:      `Log format. Supported values are "standard" and "json".`,
			})
		}

		if bit&FlagSetRequest != 0 {
			f := set.NewFlagSet("Request Options")

			f.StringVar(&StringVar{
				Name:       flagNamePage,
				Target:     &c.flagPage,
				Completion: complete.PredictFiles("*.html"),
				Usage: "Path to a saved HTML page. Its csrf-token meta tag is " +
					"sent with unsafe requests when no bearer token is set.",
			})

			f.StringVar(&StringVar{
				Name:       flagNameForm,
				Target:     &c.flagForm,
				Completion: complete.PredictAnything,
				Usage: "ID or name of a form on the -page. Its hidden CSRF field " +
					"takes precedence over the page token, and response errors " +
					"keyed by its input names are shown as field errors.",
			})

			f.StringSliceVar(&StringSliceVar{
				Name:       flagNameFile,
				Target:     &c.flagFiles,
				Completion: complete.PredictFiles("*"),
				Usage: "FIELD=PATH pair uploaded as a multipart file part. " +
					"May be given multiple times; key=value arguments become " +
					"plain form fields.",
			})
		}

		if bit&FlagSetOutputFormat != 0 {
			outputSet := set.NewFlagSet("Output Options")

			outputSet.StringVar(&StringVar{
				Name:       "format",
				Target:     &c.flagFormat,
				Default:    "table",
				EnvVar:     EnvBillingFormat,
				Completion: complete.PredictSet("table", "json", "pretty"),
				Usage: `Print the output in the given format. Valid formats
				are "table", "json", or "pretty".`,
			})
		}

		c.flags = set
	})

	return c.flags
}

// parseFlags parses args and warns about flags given after positional
// arguments.
func (c *BaseCommand) parseFlags(f *FlagSets, args []string) error {
	if err := f.Parse(args); err != nil {
		return err
	}
	if warning := generateFlagWarnings(f.Args()); warning != "" {
		c.UI.Warn(warning)
	}
	return nil
}

// requestContext returns a context cancelled on shutdown.
func (c *BaseCommand) requestContext() (context.Context, context.CancelFunc) {
	if c.ShutdownCh == nil {
		c.ShutdownCh = MakeShutdownCh()
	}
	return shutdownContext(c.ShutdownCh)
}

// outputFormat returns the selected format.
func (c *BaseCommand) outputFormat() string {
	if c.flagFormat != "" {
		return strings.ToLower(c.flagFormat)
	}
	return Format(c.UI)
}
