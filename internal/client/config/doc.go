// Package config loads runtime configuration for the suifan client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings such as "10s" or
// integer nanoseconds:
//
//	{
//	  "rpc_url": "https://fullnode.testnet.sui.io:443",
//	  "package_id": "0x...",
//	  "aggregator_urls": ["https://aggregator.example"],
//	  "key_servers": [{"object_id": "0x...", "url": "https://ks.example", "weight": 1}],
//	  "threshold": 2,
//	  "session_ttl": "10m",
//	  "download_timeout": "10s"
//	}
//
// Key servers and the threshold are configuration rather than constants so
// they can be rotated without a new build.
package config
