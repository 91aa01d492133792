package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrDialInProgress   = errors.New("dial already in progress")
	ErrSelfConnect      = errors.New("refusing to connect to self")
	ErrHandshake        = errors.New("handshake failed")
	ErrProtocolDesync   = errors.New("protocol desync")
	ErrNoHandler        = errors.New("no handler for verb")
	ErrSessionClosed    = errors.New("session closed")
	ErrNotAFile         = errors.New("not a regular file")
	ErrWithdrawn        = errors.New("sender withdrew the file")
)

// ConnectionError is a bind, dial, read or write failure. It ends the
// connection but never the process.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransferIOError is a local file failure. It fails the transfer it belongs
// to and leaves the connection alone.
type TransferIOError struct {
	ID  string
	Op  string
	Err error
}

func (e *TransferIOError) Error() string {
	return fmt.Sprintf("transfer %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *TransferIOError) Unwrap() error {
	return e.Err
}
