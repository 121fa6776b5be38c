package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/suifan/internal/flagx"
	"github.com/dmitrijs2005/suifan/internal/timex"
)

// JSONConfig is the on-disk form of Config. Pointer and zero-valued fields
// that are absent from the file leave the current value untouched.
type JSONConfig struct {
	RPCURL string `json:"rpc_url"`

	PackageID          string `json:"package_id"`
	WalrusPackageID    string `json:"walrus_package_id"`
	WalrusSystemObject string `json:"walrus_system_object"`
	AllCreatorsObject  string `json:"all_creators_object"`

	PublisherURL   string   `json:"publisher_url"`
	AggregatorURLs []string `json:"aggregator_urls"`
	StorageNodes   []string `json:"storage_nodes"`
	S3             *S3      `json:"s3"`

	KeyServers []KeyServer `json:"key_servers"`
	Threshold  int         `json:"threshold"`

	SessionTTL      timex.Duration `json:"session_ttl"`
	DownloadTimeout timex.Duration `json:"download_timeout"`

	StorageEpochs int   `json:"storage_epochs"`
	Deletable     *bool `json:"deletable"`
	DataShards    int   `json:"data_shards"`
	ParityShards  *int  `json:"parity_shards"`

	GasBudget            uint64         `json:"gas_budget"`
	FinalityPollInterval timex.Duration `json:"finality_poll_interval"`
	FinalityTimeout      timex.Duration `json:"finality_timeout"`

	KeystorePath  string `json:"keystore_path"`
	HistoryDBPath string `json:"history_db_path"`
	LogLevel      string `json:"log_level"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JSONConfig) apply(cfg *Config) {
	setString(&cfg.RPCURL, jc.RPCURL)
	setString(&cfg.PackageID, jc.PackageID)
	setString(&cfg.WalrusPackageID, jc.WalrusPackageID)
	setString(&cfg.WalrusSystemObject, jc.WalrusSystemObject)
	setString(&cfg.AllCreatorsObject, jc.AllCreatorsObject)
	setString(&cfg.PublisherURL, jc.PublisherURL)
	setString(&cfg.KeystorePath, jc.KeystorePath)
	setString(&cfg.HistoryDBPath, jc.HistoryDBPath)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.AggregatorURLs != nil {
		cfg.AggregatorURLs = jc.AggregatorURLs
	}
	if jc.StorageNodes != nil {
		cfg.StorageNodes = jc.StorageNodes
	}
	if jc.S3 != nil {
		cfg.S3 = *jc.S3
	}
	if jc.KeyServers != nil {
		cfg.KeyServers = jc.KeyServers
	}
	if jc.Threshold != 0 {
		cfg.Threshold = jc.Threshold
	}

	setDuration(&cfg.SessionTTL, jc.SessionTTL)
	setDuration(&cfg.DownloadTimeout, jc.DownloadTimeout)
	setDuration(&cfg.FinalityPollInterval, jc.FinalityPollInterval)
	setDuration(&cfg.FinalityTimeout, jc.FinalityTimeout)

	if jc.StorageEpochs != 0 {
		cfg.StorageEpochs = jc.StorageEpochs
	}
	if jc.Deletable != nil {
		cfg.Deletable = *jc.Deletable
	}
	if jc.DataShards != 0 {
		cfg.DataShards = jc.DataShards
	}
	if jc.ParityShards != nil {
		cfg.ParityShards = *jc.ParityShards
	}
	if jc.GasBudget != 0 {
		cfg.GasBudget = jc.GasBudget
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
