package vm

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rxcore.vm")

// Value is a reference to a managed interpreter object. The collector
// owns its lifetime; tables and frame buffers only hold it.
type Value = any

// ErrProtocolViolation is the sentinel wrapped by every ProtocolViolation.
var ErrProtocolViolation = errors.New("protocol violation")

// ProtocolViolation reports misuse of a runtime primitive, such as
// releasing activation frames out of LIFO order.
type ProtocolViolation struct {
	Op     string
	Detail string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation in %s: %s", e.Op, e.Detail)
}

func (e *ProtocolViolation) Unwrap() error { return ErrProtocolViolation }

func violation(op, format string, args ...any) *ProtocolViolation {
	return &ProtocolViolation{Op: op, Detail: fmt.Sprintf(format, args...)}
}
