package player

import "errors"

// ErrorKind classifies failures surfaced through ErrorEvent.
type ErrorKind string

const (
	// KindResolution covers provider lookups that found nothing or timed out.
	KindResolution ErrorKind = "resolution"
	// KindTransport covers voice connect and stream start failures.
	KindTransport ErrorKind = "transport"
	// KindStateConflict covers commands that are a no-op in the current
	// phase, e.g. pause while nothing plays.
	KindStateConflict ErrorKind = "state_conflict"
)

var (
	ErrNothingPlaying = errors.New("no track is currently playing")
	ErrNotPaused      = errors.New("playback is not paused")
	ErrNotConnected   = errors.New("not connected to a voice channel")
	ErrNoResults      = errors.New("no results for query")
)
