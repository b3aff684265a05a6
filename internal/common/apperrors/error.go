// Package apperrors provides chainable application errors that carry a failure kind
// and an HTTP status code. Kinds classify failures the way callers need to react to
// them: validation failures are re-prompted, allocation failures degrade, commit row
// failures are counted, session state failures ask the user to restart.
package apperrors

// Kind classifies an error for the caller that has to decide how to recover.
type Kind int

const (
	KindInternal     Kind = iota // unexpected failure
	KindValidation               // malformed user input
	KindAllocation               // id allocation could not read the ledger
	KindCommitRow                // a single ledger row append failed
	KindSessionState             // input arrived for a step that does not accept it
	KindLedger                   // ledger gateway failure
	KindConfig                   // invalid or missing configuration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAllocation:
		return "allocation"
	case KindCommitRow:
		return "commit_row"
	case KindSessionState:
		return "session_state"
	case KindLedger:
		return "ledger"
	case KindConfig:
		return "config"
	default:
		return "internal"
	}
}

// Error extends the standard error interface with wrapping, message manipulation,
// kind and status code management. All methods return Error to support chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	SetKind(Kind) Error                    // sets the failure kind
	Kind() Kind                            // returns the failure kind
	SetStatusCode(int) Error               // sets HTTP status code for the admin API
	StatusCode() int                       // returns the current status code
	Prefix(string) Error                   // adds a prefix to the error message
	Suffix(string) Error                   // adds a suffix to the error message
	ErrorAll() string                      // returns full message including wrapped errors
	UnwrapAll() []error                    // returns all wrapped errors
}
