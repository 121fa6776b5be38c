// Package uploads stores the local publish history: one row per blob the
// wallet owner published from this machine.
package uploads
