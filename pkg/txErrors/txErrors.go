// Package txErrors defines the error taxonomy shared by every role of the
// transaction lifecycle engine. Every failure surfaced by a proxy carries exactly
// one Kind so callers can distinguish "this network doesn't support it" from
// "the network rejected your transaction" without string matching.
package txErrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
)

// Kind classifies a failure.
type Kind int

const (
	kindUnknown Kind = iota
	// KindUnsupported means no implementation is registered for the requested network
	KindUnsupported
	// KindTransient means the node was unreachable or timed out
	KindTransient
	// KindRejected means the network itself rejected the request
	KindRejected
	// KindContractViolation means a caller handed an implementation data it can never accept
	KindContractViolation
	// KindAccountNotInitialized means the source account does not exist on chain yet
	KindAccountNotInitialized
	// KindInvalidInput means the intent or arguments are malformed
	KindInvalidInput
	// KindSigning means the signing primitive failed
	KindSigning
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	case KindContractViolation:
		return "contract_violation"
	case KindAccountNotInitialized:
		return "account_not_initialized"
	case KindInvalidInput:
		return "invalid_input"
	case KindSigning:
		return "signing"
	}
	return "unknown"
}

// Op names the role that produced an error.
type Op string

const (
	OpPreload    Op = "preload"
	OpSign       Op = "sign"
	OpBroadcast  Op = "broadcast"
	OpStatus     Op = "status"
	OpNodeStatus Op = "node_status"
)

// Error is the typed failure returned across the engine.
type Error struct {
	Kind  Kind
	Op    Op
	Chain chain.Chain
	// Message is the raw text returned by the network, suitable for display
	Message string
	Err     error
}

func (e *Error) Error() string {
	var parts []string
	if where := strings.TrimSpace(string(e.Op) + " " + string(e.Chain)); where != "" {
		parts = append(parts, where)
	}
	// a wrapped error of the same kind and message already renders both
	var inner *Error
	if !errors.As(e.Err, &inner) || inner.Kind != e.Kind || inner.Message != e.Message {
		parts = append(parts, e.Kind.String())
		if e.Message != "" {
			parts = append(parts, e.Message)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, so errors.Is(err, ErrTransient) holds for any transient error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Chain == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnsupported           = &Error{Kind: KindUnsupported}
	ErrTransient             = &Error{Kind: KindTransient}
	ErrRejected              = &Error{Kind: KindRejected}
	ErrContractViolation     = &Error{Kind: KindContractViolation}
	ErrAccountNotInitialized = &Error{Kind: KindAccountNotInitialized}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrSigning               = &Error{Kind: KindSigning}

	// ErrNotFound is returned by node transports when the requested object does not exist.
	// It is never surfaced by a proxy as-is: each role decides what absence means.
	ErrNotFound = errors.New("not found")
)

// New builds a typed error.
func New(kind Kind, op Op, c chain.Chain, err error) *Error {
	return &Error{Kind: kind, Op: op, Chain: c, Err: err}
}

// Rejected builds a protocol rejection carrying the network's raw message.
func Rejected(op Op, c chain.Chain, message string) *Error {
	return &Error{Kind: KindRejected, Op: op, Chain: c, Message: message}
}

// Unsupported builds a dispatch-miss error.
func Unsupported(op Op, c chain.Chain) *Error {
	return &Error{Kind: KindUnsupported, Op: op, Chain: c}
}

// ChainDataMismatch builds the contract violation raised when a signer receives a foreign chain data shape.
func ChainDataMismatch(c chain.Chain, expected string, got any) *Error {
	return &Error{
		Kind:  KindContractViolation,
		Op:    OpSign,
		Chain: c,
		Err:   fmt.Errorf("expected %s chain data, got %T", expected, got),
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return kindUnknown
}

// Tag attaches op and chain to err. Errors that already carry a kind keep it and
// are wrapped whole, so context added around them survives. Untyped errors from signing become KindSigning,
// untyped errors from any other role are node failures and become KindTransient.
func Tag(op Op, c chain.Chain, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op != "" && e.Chain != "" {
			return err
		}
		out := &Error{Kind: e.Kind, Op: e.Op, Chain: e.Chain, Message: e.Message, Err: err}
		if out.Op == "" {
			out.Op = op
		}
		if out.Chain == "" {
			out.Chain = c
		}
		return out
	}
	if op == OpSign {
		return New(KindSigning, op, c, err)
	}
	return New(KindTransient, op, c, err)
}

// IsRetryable reports whether a caller may retry the failed operation as-is.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
