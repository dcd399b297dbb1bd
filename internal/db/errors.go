package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Op constants map to Redis command names for error context.
const (
	OpPing   = "PING"
	OpSearch = "FT.SEARCH"
	OpGet    = "GET"
	OpIncrBy = "INCRBY"
	OpExpire = "PEXPIRE"

	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpHSet        = "HSET"
	OpDel         = "DEL"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
