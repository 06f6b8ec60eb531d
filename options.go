package beacon

import (
	"crypto/x509"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/beacon-sdk/beacon-go/storage"
)

// Storage backends selectable through ClientOptions.StorageBackend.
const (
	StorageMemory = "memory"
	StorageBolt   = "bolt"
	StorageSQLite = "sqlite"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Endpoint is the collection URL beacons are sent to. The event payload
	// is added as the d query parameter.
	Endpoint string
	// AccountID is attached to every request unless Account is set.
	AccountID string
	// In debug mode, the debug information is printed to DebugWriter
	// (os.Stderr by default).
	Debug       bool
	DebugWriter io.Writer
	// DebugLogger replaces the debug logger and takes precedence over Debug
	// and DebugWriter. See the zap and logrus packages for adapters.
	DebugLogger *log.Logger
	// BlockRequests starts the client with sending blocked. Requests are
	// still persisted and replayed by a later client.
	BlockRequests bool

	// Store overrides StorageBackend.
	Store storage.Store
	// StorageBackend is one of StorageMemory (default), StorageBolt or
	// StorageSQLite. Durable backends require StoragePath.
	StorageBackend string
	StoragePath    string
	// StorageCodec is "json" (default) or "msgpack".
	StorageCodec string

	// Transport overrides the default HTTPTransport.
	Transport Transport
	// Options of the default HTTPTransport.
	QueueSize     int
	HTTPTimeout   time.Duration
	HTTPClient    *http.Client
	HTTPTransport http.RoundTripper
	HTTPProxy     string
	HTTPSProxy    string
	CaCerts       *x509.CertPool

	// ShutdownTimeout bounds how long Close waits for queued requests.
	// Defaults to 2 seconds.
	ShutdownTimeout time.Duration

	// Clock defaults to the system clock.
	Clock Clock
	// Collaborators providing the enrichment fields. Nil values get
	// defaults: StaticAccount(AccountID), a DeviceState and a SessionTracker.
	Account     Account
	Device      Device
	Session     Session
	Diagnostics *Diagnostics
	// PersonalizationActive enables the resync flag.
	PersonalizationActive func() bool
}

// EnvConfig is the subset of ClientOptions read from the environment.
type EnvConfig struct {
	Endpoint        string        `env:"BEACON_ENDPOINT"`
	AccountID       string        `env:"BEACON_ACCOUNT_ID"`
	Debug           bool          `env:"BEACON_DEBUG"`
	BlockRequests   bool          `env:"BEACON_BLOCK_REQUESTS"`
	StorageBackend  string        `env:"BEACON_STORAGE" envDefault:"memory"`
	StoragePath     string        `env:"BEACON_STORAGE_PATH"`
	StorageCodec    string        `env:"BEACON_STORAGE_CODEC" envDefault:"json"`
	QueueSize       int           `env:"BEACON_QUEUE_SIZE" envDefault:"1000"`
	HTTPTimeout     time.Duration `env:"BEACON_HTTP_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"BEACON_SHUTDOWN_TIMEOUT" envDefault:"2s"`
	HTTPProxy       string        `env:"BEACON_HTTP_PROXY"`
	HTTPSProxy      string        `env:"BEACON_HTTPS_PROXY"`
}

// ClientOptions converts the environment configuration into ClientOptions.
func (c EnvConfig) ClientOptions() ClientOptions {
	return ClientOptions{
		Endpoint:        c.Endpoint,
		AccountID:       c.AccountID,
		Debug:           c.Debug,
		BlockRequests:   c.BlockRequests,
		StorageBackend:  c.StorageBackend,
		StoragePath:     c.StoragePath,
		StorageCodec:    c.StorageCodec,
		QueueSize:       c.QueueSize,
		HTTPTimeout:     c.HTTPTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
		HTTPProxy:       c.HTTPProxy,
		HTTPSProxy:      c.HTTPSProxy,
	}
}

// OptionsFromEnv reads ClientOptions from BEACON_* environment variables.
func OptionsFromEnv() (ClientOptions, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientOptions{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg.ClientOptions(), nil
}
