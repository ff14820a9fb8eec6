package main

import "fmt"

// ErrorKind names a failure category surfaced to clients as an Error frame.
type ErrorKind int

const (
	ErrKindKeyNotFound ErrorKind = iota
	ErrKindWrongType
	ErrKindNotInteger
	ErrKindOutOfMemory
	ErrKindParse
	ErrKindInvalidCommand
	ErrKindInvalidArgCount
	ErrKindIO
	ErrKindInternal
)

// ProtocolError is the error type every layer of the server (codec, router,
// keyspace, executor) returns. Its Error() text is exactly what gets written
// back to the client in an Error frame.
type ProtocolError struct {
	Kind ErrorKind
	text string
}

func (e *ProtocolError) Error() string { return e.text }

func ErrKeyNotFound() *ProtocolError {
	return &ProtocolError{Kind: ErrKindKeyNotFound, text: "ERR no such key"}
}

func ErrWrongType() *ProtocolError {
	return &ProtocolError{Kind: ErrKindWrongType, text: "WRONGTYPE Operation against a key holding the wrong kind of value"}
}

func ErrNotInteger() *ProtocolError {
	return &ProtocolError{Kind: ErrKindNotInteger, text: "ERR value is not an integer"}
}

func ErrOutOfMemory() *ProtocolError {
	return &ProtocolError{Kind: ErrKindOutOfMemory, text: "OOM command not allowed when used memory > 'maxmemory'"}
}

func ErrParse(detail string) *ProtocolError {
	return &ProtocolError{Kind: ErrKindParse, text: fmt.Sprintf("ERR Protocol error: %s", detail)}
}

func ErrInvalidCommand(name string) *ProtocolError {
	return &ProtocolError{Kind: ErrKindInvalidCommand, text: fmt.Sprintf("ERR unknown command '%s'", name)}
}

func ErrInvalidArgCount(cmd string, expected, got int) *ProtocolError {
	return &ProtocolError{
		Kind: ErrKindInvalidArgCount,
		text: fmt.Sprintf("ERR wrong number of arguments for '%s' command: expected %d, got %d", cmd, expected, got),
	}
}

func ErrIO(detail string) *ProtocolError {
	return &ProtocolError{Kind: ErrKindIO, text: fmt.Sprintf("ERR IO error: %s", detail)}
}

func ErrInternal(detail string) *ProtocolError {
	return &ProtocolError{Kind: ErrKindInternal, text: fmt.Sprintf("ERR internal error: %s", detail)}
}
