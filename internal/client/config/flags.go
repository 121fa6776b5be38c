package config

import (
	"flag"

	"github.com/dmitrijs2005/suifan/internal/flagx"
)

var knownFlags = []string{"-r", "-p", "-m", "-n", "-t", "-e", "-k", "-d", "-l", "-pkg", "-registry"}

// parseFlags overlays cfg with command-line flags:
//
//	-r string     ledger JSON-RPC URL
//	-p string     blob publisher URL
//	-m list       aggregator mirror URLs (repeatable or comma-separated)
//	-n list       storage node URLs
//	-t int        key-server threshold
//	-e int        storage epochs
//	-k string     keystore path
//	-d string     history database path
//	-l string     log level
//	-pkg string   content-creator package id
//	-registry string  AllCreators registry object id
//
// Unknown arguments are ignored so other loaders can own them.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("suifan", flag.ContinueOnError)

	fs.StringVar(&cfg.RPCURL, "r", cfg.RPCURL, "ledger JSON-RPC URL")
	fs.StringVar(&cfg.PublisherURL, "p", cfg.PublisherURL, "blob publisher URL")
	fs.Var(&flagx.StringList{Values: &cfg.AggregatorURLs}, "m", "aggregator mirror URLs")
	fs.Var(&flagx.StringList{Values: &cfg.StorageNodes}, "n", "storage node URLs")
	fs.IntVar(&cfg.Threshold, "t", cfg.Threshold, "key-server threshold")
	fs.IntVar(&cfg.StorageEpochs, "e", cfg.StorageEpochs, "storage epochs")
	fs.StringVar(&cfg.KeystorePath, "k", cfg.KeystorePath, "keystore path")
	fs.StringVar(&cfg.HistoryDBPath, "d", cfg.HistoryDBPath, "history database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.PackageID, "pkg", cfg.PackageID, "content-creator package id")
	fs.StringVar(&cfg.AllCreatorsObject, "registry", cfg.AllCreatorsObject, "AllCreators registry object id")

	return fs.Parse(filtered)
}
