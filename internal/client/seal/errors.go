package seal

import "errors"

var (
	ErrMalformedObject      = errors.New("malformed encrypted object")
	ErrNoAccess             = errors.New("no access to decryption keys")
	ErrKeyServerUnavailable = errors.New("key servers unavailable")
	ErrDecryptFailed        = errors.New("decryption failed")
	ErrInvalidThreshold     = errors.New("invalid threshold")
	ErrInvalidKey           = errors.New("key server returned an invalid key")
	ErrSessionExpired       = errors.New("session credential expired")
	ErrInvalidCertificate   = errors.New("invalid session certificate")
	ErrPackageMismatch      = errors.New("encrypted object belongs to another package")
	ErrUnknownKeyServer     = errors.New("unknown key server")
)
