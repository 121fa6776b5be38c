// Package upload drives a blob through encode, register, upload, certify
// and list. Each step is a distinct flow type that can only be produced by
// the previous one, so steps cannot run out of order.
package upload
