package storage

import "errors"

var (
	ErrProjectExists   = errors.New("project exists")
	ErrProjectNotFound = errors.New("project not found")
	ErrEditMalformed   = errors.New("edit malformed")

	ErrContextCancelled = errors.New("context cancelled")
)
