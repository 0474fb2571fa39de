package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")

	ErrProjectNotLoaded = errors.New("project not loaded")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrSpeakerNotFound  = errors.New("speaker not found")

	ErrWordCountExceeded = errors.New("word count exceeded")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrTimingOverlap     = errors.New("timing overlap")
	ErrOrderingGap       = errors.New("ordering gap")
	ErrMalformedEdit     = errors.New("malformed edit")

	ErrAlreadyInFlight = errors.New("synthesis already in flight")
	ErrNotInFlight     = errors.New("synthesis not in flight")
	ErrSilenceSegment  = errors.New("silence segment is not synthesizable")
	ErrTextTooLong     = errors.New("text exceeds max request length")
	ErrExecutorTimeout = errors.New("executor timeout")
)
