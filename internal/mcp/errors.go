package mcp

import "fmt"

// TransportError is a connection-level failure: the request never
// produced a JSON-RPC response (subprocess died, network refused,
// non-2xx HTTP status). Protocol-level failures travel as *RPCError
// instead.
type TransportError struct {
	Server string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("mcp transport %s: %s: %v", e.Server, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates a malformed JSON-RPC envelope: bytes arrived
// but could not be decoded into a valid message.
type ProtocolError struct {
	Msg string
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mcp protocol: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("mcp protocol: %s", e.Msg)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
