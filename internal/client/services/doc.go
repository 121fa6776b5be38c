// Package services holds the orchestrators the CLI calls: catalog reads,
// marketplace transactions, publication and decryption of creator content.
package services
