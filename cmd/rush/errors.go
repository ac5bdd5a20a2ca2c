package main

import (
	"errors"
	"fmt"
)

// Run errors
var (
	ErrReadSpec     = errors.New("reading QoS spec")
	ErrWatchSpec    = errors.New("watching QoS spec file")
	ErrServeMetrics = errors.New("serving metrics")
	ErrOpenLogFile  = errors.New("opening event log file")
)

func wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}
