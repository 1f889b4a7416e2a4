package vm

import (
	"github.com/google/uuid"
)

// Activity is one thread of interpreted execution. It owns exactly one
// activation stack, which must never be shared with another activity.
type Activity struct {
	id    uuid.UUID
	stack *ActivationStack
}

// NewActivity creates an activity with a fresh activation stack.
func NewActivity(frameCapacity int) *Activity {
	return &Activity{
		id:    uuid.New(),
		stack: NewActivationStack(frameCapacity),
	}
}

// ID returns the activity's identifier.
func (a *Activity) ID() uuid.UUID { return a.id }

// Stack returns the activity's activation stack.
func (a *Activity) Stack() *ActivationStack { return a.stack }

// Call runs fn with a frame of n slots and releases the frame when fn
// returns or panics.
func (a *Activity) Call(n int, fn func(Frame) error) (err error) {
	f := a.stack.AllocateFrame(n)
	defer func() {
		if rerr := a.stack.ReleaseFrame(f); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(f)
}
