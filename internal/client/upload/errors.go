package upload

import (
	"errors"
	"fmt"
)

var (
	ErrFlowSpent       = errors.New("flow step already completed")
	ErrEmptyEncoding   = errors.New("invalid erasure coding shape")
	ErrNoStorageNodes  = errors.New("no storage nodes configured")
	ErrMissingBlobID   = errors.New("no blob id after certification")
	ErrBlobIDMismatch  = errors.New("certified blob id differs from encoded blob id")
	ErrMissingIdentity = errors.New("upload identifier is required")
)

// Step names a pipeline step.
type Step string

const (
	StepEncode   Step = "encode"
	StepRegister Step = "register"
	StepUpload   Step = "upload"
	StepCertify  Step = "certify"
	StepList     Step = "list"
)

// StepError records which step failed. A failed upload step can be retried
// from the same RegisteredFlow; any other failure restarts the flow.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the step recorded in err, if any.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
