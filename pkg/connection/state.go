package connection

import "fmt"

// State is the lifecycle phase of the push channel.
type State int

const (
	StateUnknown State = iota
	StateDisconnected
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	if newState == StateClosed && s != StateClosed {
		return nil
	}

	switch s {
	case StateDisconnected:
		if newState == StateConnecting {
			return nil
		}
	case StateConnecting:
		switch newState {
		case StateConnected, StateReconnecting, StateFailed, StateDisconnected:
			return nil
		}
	case StateConnected:
		// Connected to Reconnecting happens when the stream breaks after a
		// successful open; Connected to Connecting when the consumer forces
		// a re-dial of a live channel.
		switch newState {
		case StateReconnecting, StateConnecting, StateDisconnected:
			return nil
		}
	case StateReconnecting:
		switch newState {
		case StateConnecting, StateFailed, StateDisconnected:
			return nil
		}
	case StateFailed:
		// Only an explicit Connect leaves the failed state.
		switch newState {
		case StateConnecting, StateDisconnected:
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
