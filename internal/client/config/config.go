package config

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// KeyServer describes one threshold key server. URL and PublicKey may be left
// empty, in which case they are read from the server's on-chain object.
type KeyServer struct {
	ObjectID  string `json:"object_id"`
	URL       string `json:"url"`
	PublicKey string `json:"public_key"`
	Weight    int    `json:"weight"`
}

// S3 configures the optional S3-compatible aggregator mirror.
type S3 struct {
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

func (s S3) Enabled() bool {
	return s.Bucket != ""
}

// Config holds runtime settings for the suifan client.
type Config struct {
	RPCURL string

	PackageID          string
	WalrusPackageID    string
	WalrusSystemObject string
	AllCreatorsObject  string

	PublisherURL   string
	AggregatorURLs []string
	StorageNodes   []string
	S3             S3

	KeyServers []KeyServer
	Threshold  int

	SessionTTL      time.Duration
	DownloadTimeout time.Duration

	StorageEpochs int
	Deletable     bool
	DataShards    int
	ParityShards  int

	GasBudget            uint64
	FinalityPollInterval time.Duration
	FinalityTimeout      time.Duration

	KeystorePath  string
	HistoryDBPath string
	LogLevel      string
}

// LoadDefaults populates c with testnet defaults.
func (c *Config) LoadDefaults() {
	c.RPCURL = "https://fullnode.testnet.sui.io:443"

	c.PublisherURL = "https://publisher.walrus-testnet.walrus.space"
	c.AggregatorURLs = []string{"https://aggregator.walrus-testnet.walrus.space"}
	c.StorageNodes = nil

	c.KeyServers = []KeyServer{
		{ObjectID: "0x73d05d62c18d9374e3ea529e8e0ed6161da1a141a94d3f76ae3fe4e99356db75", Weight: 1},
		{ObjectID: "0xf5d14a81a982144ae441cd7d64b09027f116a468bd36e7eca494f750591623c8", Weight: 1},
	}
	c.Threshold = 2

	c.SessionTTL = 10 * time.Minute
	c.DownloadTimeout = 10 * time.Second

	c.StorageEpochs = 1
	c.Deletable = true
	c.DataShards = 4
	c.ParityShards = 2

	c.GasBudget = 50_000_000
	c.FinalityPollInterval = 500 * time.Millisecond
	c.FinalityTimeout = 30 * time.Second

	c.KeystorePath = "~/.suifan/keystore.json"
	c.HistoryDBPath = "~/.suifan/history.db"
	c.LogLevel = "info"
}

// Validate reports the first setting that makes the client unusable.
func (c *Config) Validate() error {
	switch {
	case c.RPCURL == "":
		return fmt.Errorf("%w: rpc url is empty", ErrInvalidConfig)
	case len(c.AggregatorURLs) == 0 && !c.S3.Enabled():
		return fmt.Errorf("%w: no aggregator mirrors", ErrInvalidConfig)
	case len(c.KeyServers) == 0:
		return fmt.Errorf("%w: no key servers", ErrInvalidConfig)
	case c.DataShards < 1 || c.ParityShards < 0:
		return fmt.Errorf("%w: bad erasure shape %d+%d", ErrInvalidConfig, c.DataShards, c.ParityShards)
	case c.DownloadTimeout <= 0:
		return fmt.Errorf("%w: download timeout must be positive", ErrInvalidConfig)
	}

	total := 0
	for _, ks := range c.KeyServers {
		if ks.ObjectID == "" || ks.Weight < 1 {
			return fmt.Errorf("%w: key server %q needs an object id and a positive weight", ErrInvalidConfig, ks.ObjectID)
		}
		total += ks.Weight
	}
	if c.Threshold < 1 || c.Threshold > total {
		return fmt.Errorf("%w: threshold %d outside 1..%d", ErrInvalidConfig, c.Threshold, total)
	}
	return nil
}

// LoadConfig builds a Config from defaults, then the JSON file named by -c or
// -config (if any), then command-line flags. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
