package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalid         = errors.New("invalid parameter")
	ErrConflict        = errors.New("conflict")
	ErrTooMany         = errors.New("too many requests")
	ErrInternal        = errors.New("internal")
	ErrInvalidFile     = errors.New("invalid file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmbedProvider   = errors.New("embedding provider failure")
	ErrIndexCorruption = errors.New("vector index corruption")
	ErrNotIndexed      = errors.New("file not indexed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsIndexCorruption(err error) bool {
	return errors.Is(err, ErrIndexCorruption)
}
