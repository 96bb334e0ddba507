package configutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/go-secure-stdlib/tlsutil"
	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"
)

// Config is the client configuration read from an HCL or JSON file.
type Config struct {
	FoundKeys  []string     `hcl:",decodedFields"`
	UnusedKeys UnusedKeyMap `hcl:"-"`

	Address string `hcl:"address"`
	APIBase string `hcl:"api_base"`

	ClientTimeout    time.Duration `hcl:"-"`
	ClientTimeoutRaw interface{}   `hcl:"client_timeout"`

	// RateLimit is "rate:burst" or a bare rate.
	RateLimit string `hcl:"rate_limit"`

	ProviderNotified string `hcl:"provider_notified"`
	BatchConcurrency int    `hcl:"batch_concurrency"`

	// LogFormat specifies the log format. Valid values are "standard" and
	// "json". The values are case-insenstive. If no log format is specified,
	// then standard format will be used.
	LogFormat string `hcl:"log_format"`
	LogLevel  string `hcl:"log_level"`

	TLS *TLS `hcl:"-"`

	Telemetry *Telemetry `hcl:"telemetry"`
}

// TLS is the tls block of the configuration.
type TLS struct {
	FoundKeys  []string     `hcl:",decodedFields"`
	UnusedKeys UnusedKeyMap `hcl:"-"`

	CACert     string `hcl:"ca_cert"`
	CAPath     string `hcl:"ca_path"`
	ClientCert string `hcl:"client_cert"`
	ClientKey  string `hcl:"client_key"`
	ServerName string `hcl:"server_name"`

	Insecure    bool        `hcl:"-"`
	InsecureRaw interface{} `hcl:"insecure"`

	MinVersionRaw string `hcl:"min_version"`
	MinVersion    uint16 `hcl:"-"`

	CipherSuitesRaw string   `hcl:"cipher_suites"`
	CipherSuites    []uint16 `hcl:"-"`
}

func (t *TLS) GoString() string {
	return fmt.Sprintf("*%#v", *t)
}

// LoadConfigFile reads and parses a configuration file.
func LoadConfigFile(path string) (*Config, error) {
	// Read the file
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(string(d))
}

// ParseConfig parses HCL or JSON configuration. Semantic problems are
// collected and returned together.
func ParseConfig(d string) (*Config, error) {
	obj, err := hcl.Parse(d)
	if err != nil {
		return nil, err
	}

	// Start building the result
	var result Config

	if err := hcl.DecodeObject(&result, obj); err != nil {
		return nil, err
	}

	list, ok := obj.Node.(*ast.ObjectList)
	if !ok {
		return nil, fmt.Errorf("error parsing: file doesn't contain a root object")
	}
	result.UnusedKeys = unusedKeys(list, &result)

	if result.ClientTimeoutRaw != nil {
		if result.ClientTimeout, err = parseutil.ParseDurationSecond(result.ClientTimeoutRaw); err != nil {
			return nil, fmt.Errorf("error parsing 'client_timeout': %w", err)
		}
		result.FoundKeys = append(result.FoundKeys, "ClientTimeout")
		result.ClientTimeoutRaw = nil
	}

	if o := list.Filter("tls"); len(o.Items) > 0 {
		result.found("tls", "TLS")
		if err := parseTLS(&result, o); err != nil {
			return nil, fmt.Errorf("error parsing 'tls': %w", err)
		}
	}

	if o := list.Filter("telemetry"); len(o.Items) > 0 {
		result.found("telemetry", "Telemetry")
		if err := parseTelemetry(&result, o); err != nil {
			return nil, fmt.Errorf("error parsing 'telemetry': %w", err)
		}
	}

	if err := result.check(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) found(s, k string) {
	delete(c.UnusedKeys, s)
	c.FoundKeys = append(c.FoundKeys, k)
}

func (c *Config) check() error {
	var result *multierror.Error

	if c.Address != "" && !govalidator.IsURL(c.Address) {
		result = multierror.Append(result, fmt.Errorf("address %q is not a valid URL", c.Address))
	}
	if c.Address != "" && !strings.Contains(c.Address, "://") {
		result = multierror.Append(result, fmt.Errorf("address %q must include a scheme", c.Address))
	}
	if c.BatchConcurrency < 0 {
		result = multierror.Append(result, fmt.Errorf("batch_concurrency must not be negative"))
	}
	if c.ClientTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("client_timeout must not be negative"))
	}

	return result.ErrorOrNil()
}

// Validate returns the non-fatal problems of the configuration: keys that
// were not recognized.
func (c *Config) Validate(source string) []ConfigError {
	results := ValidateUnusedFields(c.UnusedKeys, source)
	if c.TLS != nil {
		results = append(results, ValidateUnusedFields(c.TLS.UnusedKeys, source)...)
	}
	if c.Telemetry != nil {
		results = append(results, c.Telemetry.Validate(source)...)
	}
	return results
}

// Merge returns a new configuration where values set in c2 override c.
func (c *Config) Merge(c2 *Config) *Config {
	if c2 == nil {
		return c
	}

	result := *c

	if c2.Address != "" {
		result.Address = c2.Address
	}
	if c2.APIBase != "" {
		result.APIBase = c2.APIBase
	}
	if c2.ClientTimeout != 0 {
		result.ClientTimeout = c2.ClientTimeout
	}
	if c2.RateLimit != "" {
		result.RateLimit = c2.RateLimit
	}
	if c2.ProviderNotified != "" {
		result.ProviderNotified = c2.ProviderNotified
	}
	if c2.BatchConcurrency != 0 {
		result.BatchConcurrency = c2.BatchConcurrency
	}
	if c2.LogFormat != "" {
		result.LogFormat = c2.LogFormat
	}
	if c2.LogLevel != "" {
		result.LogLevel = c2.LogLevel
	}
	if c2.TLS != nil {
		result.TLS = c2.TLS
	}
	if c2.Telemetry != nil {
		result.Telemetry = c2.Telemetry
	}

	result.FoundKeys = append(append([]string(nil), c.FoundKeys...), c2.FoundKeys...)
	result.UnusedKeys = make(UnusedKeyMap)
	for k, v := range c.UnusedKeys {
		result.UnusedKeys[k] = v
	}
	for k, v := range c2.UnusedKeys {
		result.UnusedKeys[k] = append(result.UnusedKeys[k], v...)
	}

	return &result
}

func parseTLS(result *Config, list *ast.ObjectList) error {
	if len(list.Items) > 1 {
		return fmt.Errorf("only one 'tls' block is permitted")
	}

	item := list.Items[0]

	var t TLS
	if err := hcl.DecodeObject(&t, item.Val); err != nil {
		return multierror.Prefix(err, "tls:")
	}
	if ot, ok := item.Val.(*ast.ObjectType); ok {
		t.UnusedKeys = unusedKeys(ot.List, &t)
	}

	if t.InsecureRaw != nil {
		insecure, err := parseutil.ParseBool(t.InsecureRaw)
		if err != nil {
			return multierror.Prefix(err, "tls.insecure:")
		}
		t.Insecure = insecure
		t.InsecureRaw = nil
	}

	if t.MinVersionRaw != "" {
		v, ok := tlsutil.TLSLookup[strings.ToLower(t.MinVersionRaw)]
		if !ok {
			return fmt.Errorf("tls.min_version: unsupported version %q", t.MinVersionRaw)
		}
		t.MinVersion = v
	}

	if t.CipherSuitesRaw != "" {
		suites, err := tlsutil.ParseCiphers(t.CipherSuitesRaw)
		if err != nil {
			return multierror.Prefix(err, "tls.cipher_suites:")
		}
		t.CipherSuites = suites
	}

	result.TLS = &t
	return nil
}
