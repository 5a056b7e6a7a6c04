package exception

import "errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
	ErrQueueFull       = errors.New("queue: full")
	ErrQueueClosed     = errors.New("queue: closed")
)

// Codec and WAL errors
var (
	ErrBarPayloadVersion  = errors.New("codec: unsupported bar payload version")
	ErrWALClosed          = errors.New("wal: writer closed")
	ErrWALMagic           = errors.New("wal: invalid magic")
	ErrWALVersion         = errors.New("wal: unsupported record version")
	ErrWALHeaderSize      = errors.New("wal: invalid header size")
	ErrWALChecksum        = errors.New("wal: checksum mismatch")
	ErrWALPayloadTooLarge = errors.New("wal: payload too large")
)
