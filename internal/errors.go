package internal

import "errors"

var (
	// ErrBind - the listen address or port is not valid.
	ErrBind = errors.New("chat server: cannot bind address")

	// ErrListen - the operating system refused to listen on the address.
	ErrListen = errors.New("chat server: cannot listen")

	// ErrServerStopped - Start was called on a server that is running or already stopped.
	ErrServerStopped = errors.New("chat server: not startable")
)
