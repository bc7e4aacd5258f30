package rest

import (
	"fmt"
	"time"
)

// OutcomeKind is one of the four ways a call can end.
type OutcomeKind int

const (
	KindSuccess OutcomeKind = iota + 1 // 200 and decodable
	KindFailure                        // non-200 and decodable
	KindError                          // no usable response
	KindTimeout                        // deadline elapsed
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindError:
		return "error"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// ErrorKind classifies Error.
type ErrorKind int

const (
	BuildError ErrorKind = iota + 1
	TransportError
	TimeoutError
	ApplicationError
	DecodeError
)

func (k ErrorKind) String() string {
	switch k {
	case BuildError:
		return "build"
	case TransportError:
		return "transport"
	case TimeoutError:
		return "timeout"
	case ApplicationError:
		return "application"
	case DecodeError:
		return "decode"
	}
	return "unknown"
}

// Error is the error carried by every non-success Outcome.
type Error struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Outcome is the terminal result of one call.
type Outcome struct {
	Kind    OutcomeKind
	Request *Request
	Status  int
	Body    any    // decoded JSON, numbers as json.Number
	Raw     []byte // body bytes as received
	Result  any    // Mapper output on success
	Err     error  // *Error unless Kind is KindSuccess
	Benign  bool   // venue code known to be harmless, still a failure
	Elapsed time.Duration
}

// Extra returns the caller context of the originating request.
func (o Outcome) Extra() map[string]any {
	if o.Request == nil {
		return nil
	}
	return o.Request.Extra
}

// ErrorKind returns the kind of o.Err, or 0.
func (o Outcome) ErrorKind() ErrorKind {
	if e, ok := o.Err.(*Error); ok {
		return e.Kind
	}
	return 0
}

// Handler receives exactly one callback per call.
type Handler interface {
	OnSuccess(Outcome)
	OnFailure(Outcome)
	OnError(Outcome)
	OnTimeout(Outcome)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields swallow the
// outcome.
type HandlerFuncs struct {
	Success func(Outcome)
	Failure func(Outcome)
	Error   func(Outcome)
	Timeout func(Outcome)
}

func (h HandlerFuncs) OnSuccess(o Outcome) { call(h.Success, o) }
func (h HandlerFuncs) OnFailure(o Outcome) { call(h.Failure, o) }
func (h HandlerFuncs) OnError(o Outcome)   { call(h.Error, o) }
func (h HandlerFuncs) OnTimeout(o Outcome) { call(h.Timeout, o) }

func call(fn func(Outcome), o Outcome) {
	if fn != nil {
		fn(o)
	}
}

// Dispatch invokes the one handler method matching o.Kind. A nil handler
// drops the outcome.
func (o Outcome) Dispatch(h Handler) {
	if h == nil {
		return
	}
	switch o.Kind {
	case KindSuccess:
		h.OnSuccess(o)
	case KindFailure:
		h.OnFailure(o)
	case KindTimeout:
		h.OnTimeout(o)
	default:
		h.OnError(o)
	}
}

// errorOutcome leaves Status and Body zero; the HTTP status, if any, is kept
// on the *Error.
func errorOutcome(req *Request, kind ErrorKind, status int, err error) Outcome {
	return Outcome{Kind: KindError, Request: req, Err: &Error{Kind: kind, Status: status, Err: err}}
}

func timeoutOutcome(req *Request, err error) Outcome {
	return Outcome{Kind: KindTimeout, Request: req, Err: &Error{Kind: TimeoutError, Err: err}}
}

// BuildFailure is the Outcome of a request that could not be built.
func BuildFailure(req *Request, err error) Outcome {
	return errorOutcome(req, BuildError, 0, err)
}
