package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/suifan/internal/client/blobstore"
	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"github.com/dmitrijs2005/suifan/internal/client/upload"
	"github.com/dmitrijs2005/suifan/internal/common"
)

// User-facing messages.
const (
	msgWalletNotConnected = "wallet not connected"
	msgNoEntitlement      = "no valid subscription found for this creator"
	msgRetrieval          = "could not retrieve encrypted file, please retry"
	msgNoAccess           = "no decryption access"
	msgNotCertified       = "blob was not certified"
	msgInvariant          = "upload invariant violated"
	msgMalformed          = "encrypted file is corrupted"
	msgRejected           = "request rejected in wallet"
	msgKeyServers         = "key servers unavailable, please retry"
	msgLedger             = "ledger unavailable, please retry"
	msgStorage            = "storage upload failed, please retry"
	msgNoCreatorCap       = "this wallet is not registered as a creator"
	msgNoMirrors          = "no aggregator mirrors configured"
	msgCanceled           = "canceled"
)

// Classify maps a raw cause onto the outcome taxonomy. A *common.Failure
// already in the chain is returned unchanged.
func Classify(op string, err error) *common.Failure {
	var f *common.Failure
	if errors.As(err, &f) {
		return f
	}

	var step *upload.StepError
	isStep := errors.As(err, &step)

	switch {
	case errors.Is(err, context.Canceled):
		return common.NewFailure(common.KindCanceled, op, msgCanceled, err)
	case errors.Is(err, common.ErrWalletNotConnected):
		return common.NewFailure(common.KindInput, op, msgWalletNotConnected, err)
	case errors.Is(err, blobstore.ErrNoMirrors):
		return common.NewFailure(common.KindInput, op, msgNoMirrors, err)
	case errors.Is(err, common.ErrInvalidArgument),
		errors.Is(err, upload.ErrMissingIdentity),
		errors.Is(err, seal.ErrInvalidThreshold),
		errors.Is(err, ledger.ErrInvalidAddress):
		return common.NewFailure(common.KindInput, op, "", err)

	case errors.Is(err, common.ErrEntitlementNotFound):
		return common.NewFailure(common.KindDenied, op, msgNoEntitlement, err)
	case errors.Is(err, seal.ErrNoAccess), errors.Is(err, common.ErrNoAccess):
		return common.NewFailure(common.KindDenied, op, msgNoAccess, err)
	case errors.Is(err, ErrNoCreatorCap):
		return common.NewFailure(common.KindDenied, op, msgNoCreatorCap, err)

	case errors.Is(err, common.ErrInvariant):
		return common.NewFailure(common.KindFatal, op, msgInvariant, err)
	case isStep && step.Step == upload.StepCertify:
		return common.NewFailure(common.KindFatal, op, msgNotCertified, err)
	case errors.Is(err, seal.ErrMalformedObject),
		errors.Is(err, seal.ErrPackageMismatch),
		errors.Is(err, seal.ErrDecryptFailed),
		errors.Is(err, seal.ErrInvalidKey):
		return common.NewFailure(common.KindFatal, op, msgMalformed, err)
	case errors.Is(err, ledger.ErrTransactionFailed):
		return common.NewFailure(common.KindFatal, op, "", err)

	case errors.Is(err, ledger.ErrWalletRejected):
		return common.NewFailure(common.KindInput, op, msgRejected, err)

	case errors.Is(err, blobstore.ErrRetrievalFailed), errors.Is(err, common.ErrRetrieval):
		return common.NewFailure(common.KindTransient, op, msgRetrieval, err)
	case isStep && step.Step == upload.StepUpload,
		errors.Is(err, blobstore.ErrStoreFailed),
		errors.Is(err, blobstore.ErrNodeRejected):
		return common.NewFailure(common.KindTransient, op, msgStorage, err)
	case errors.Is(err, seal.ErrKeyServerUnavailable),
		errors.Is(err, seal.ErrSessionExpired):
		return common.NewFailure(common.KindTransient, op, msgKeyServers, err)
	case errors.Is(err, ledger.ErrUnavailable),
		errors.Is(err, ledger.ErrFinalityTimeout):
		return common.NewFailure(common.KindTransient, op, msgLedger, err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewFailure(common.KindTransient, op, "", err)
	}
	return common.NewFailure(common.KindUnknown, op, "", err)
}
