package auth

import "fmt"

// StateKind tags the progress of an authentication attempt.
type StateKind string

const (
	// StateWorking means the authenticator is busy; the message describes
	// what is currently going on. The only non-terminal kind.
	StateWorking StateKind = "Working"
	// StateSuccess carries the Minecraft session token as its message.
	StateSuccess StateKind = "Success"
	// StateError carries a user-facing error message.
	StateError StateKind = "Error"
)

// State is one observable step of the authentication process.
type State struct {
	Kind    StateKind
	Message string
}

// Listener observes state transitions. It is invoked synchronously, in
// transition order, before the driving step proceeds to its next phase.
// A nil Listener is allowed. Listeners must not block.
type Listener func(State)

func (s State) Terminal() bool {
	return s.Kind == StateSuccess || s.Kind == StateError
}

func (s State) String() string {
	if s.Kind == StateSuccess {
		return fmt.Sprintf("Got Minecraft session token: [%s]", s.Message)
	}
	return s.Message
}

func working(msg string) State { return State{Kind: StateWorking, Message: msg} }
func success(msg string) State { return State{Kind: StateSuccess, Message: msg} }
func failure(msg string) State { return State{Kind: StateError, Message: msg} }
