package model

import "errors"

var (
	// ErrUserIDRequired is returned when a connect request is missing the user id.
	ErrUserIDRequired = errors.New("user id is required")

	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")

	// ErrTrackerClosed is returned when an operation is attempted on a closed tracker.
	ErrTrackerClosed = errors.New("tracker is closed")

	// ErrChannelClosed is returned when a send is attempted on a closed channel.
	ErrChannelClosed = errors.New("channel is closed")
)
