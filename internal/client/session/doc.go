// Package session caches wallet-certified seal session credentials per
// (wallet address, package) and makes sure concurrent first uses share a
// single wallet prompt.
package session
