package sequencer

import "errors"

// Kind classifies why the checked sequence stopped.
// It is a string newtype so it reads well in logs and compares cheaply.
type Kind string

const (
	KindAddress      Kind = "address_unavailable"
	KindConnectivity Kind = "connectivity_unavailable"
	KindBus          Kind = "bus_unavailable"
	KindUnclassified Kind = "unclassified"
)

// CheckError is a typed check failure. Msg is short enough for the display.
type CheckError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *CheckError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *CheckError) Unwrap() error { return e.Err }

func checkErr(k Kind, msg string, cause error) *CheckError {
	return &CheckError{Kind: k, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from an error: "" for nil, KindUnclassified for
// anything that is not a *CheckError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnclassified
}

// Exit codes of a run.
const (
	ExitOK          = 0
	ExitCheckFailed = 1
	ExitCritical    = 2
)
