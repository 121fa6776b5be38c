// Package seal implements threshold identity-based encryption against a set
// of independent key servers.
//
// A random data key is split into Shamir shares, one per unit of key-server
// weight. Each share is wrapped for its server with Boneh-Franklin IBE over
// BN256 under the identity package||id, and the payload is sealed with
// AES-256-GCM under a key derived from the data key. Key servers release
// the per-identity user secret key only after evaluating an access-proof
// transaction against the ledger; any threshold of them lets the client
// recover the data key locally.
package seal
