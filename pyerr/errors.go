package pyerr

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// enableDebugErrorPrinting makes errors include their stacktrace when printed
const enableDebugErrorPrinting bool = true
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	MroConflict
	NoSuchAttribute
	ConstructionFailed
	RecursionGuardTripped
)

// PyError is a recoverable resolution failure. Every variant degrades the
// local result to Any or to the best partial result available; none of them
// abort an analysis run.
type PyError interface {
	Error() string
	Code() ErrCode

	withStack([]byte) PyError
	getStack() []byte
}

func FormatWithCode(e PyError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			stack = strings.Split(stack, "\n")[6]
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E PyError](err E) PyError {
	return err.withStack(debug.Stack())
}

type Unclassified struct {
	From  error
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) PyError {
	e.stack = stack
	return e
}

// NewMroConflict reports an inconsistent base ordering. The class it names
// keeps an opaque Any-tailed linearization for the rest of the analysis.
type NewMroConflict struct {
	Class  string
	Detail string
	stack  []byte
}

func (e NewMroConflict) Error() string {
	return fmt.Sprintf("cannot linearize bases of class '%s': %s", e.Class, e.Detail)
}
func (e NewMroConflict) Code() ErrCode    { return MroConflict }
func (e NewMroConflict) getStack() []byte { return e.stack }
func (e NewMroConflict) withStack(stack []byte) PyError {
	e.stack = stack
	return e
}

// NewNoSuchAttribute is returned to the caller of attribute resolution,
// which decides whether the miss is reportable or a legitimate dynamic
// fallback. It is never accumulated by the engine itself.
type NewNoSuchAttribute struct {
	Base      string
	Attribute string
	stack     []byte
}

func (e NewNoSuchAttribute) Error() string {
	return fmt.Sprintf("'%s' has no attribute '%s'", e.Base, e.Attribute)
}
func (e NewNoSuchAttribute) Code() ErrCode    { return NoSuchAttribute }
func (e NewNoSuchAttribute) getStack() []byte { return e.stack }
func (e NewNoSuchAttribute) withStack(stack []byte) PyError {
	e.stack = stack
	return e
}

type NewConstructionFailed struct {
	Class  string
	Reason string
	stack  []byte
}

func (e NewConstructionFailed) Error() string {
	return fmt.Sprintf("cannot construct '%s': %s", e.Class, e.Reason)
}
func (e NewConstructionFailed) Code() ErrCode    { return ConstructionFailed }
func (e NewConstructionFailed) getStack() []byte { return e.stack }
func (e NewConstructionFailed) withStack(stack []byte) PyError {
	e.stack = stack
	return e
}

type NewRecursionGuardTripped struct {
	At    string
	stack []byte
}

func (e NewRecursionGuardTripped) Error() string {
	return fmt.Sprintf("resolution recursed too deep at '%s'", e.At)
}
func (e NewRecursionGuardTripped) Code() ErrCode    { return RecursionGuardTripped }
func (e NewRecursionGuardTripped) getStack() []byte { return e.stack }
func (e NewRecursionGuardTripped) withStack(stack []byte) PyError {
	e.stack = stack
	return e
}
