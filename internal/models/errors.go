package models

import "errors"

var (
	// ErrNotFound means the input path does not exist.
	ErrNotFound = errors.New("input not found")
	// ErrUnsupportedFormat means the file extension is not .pcap, .pcapng or .csv.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrMalformedInput covers CSV parse failures and captures no strategy could read.
	ErrMalformedInput = errors.New("malformed input")
	// ErrToolUnavailable means the external capture tool is not on the search path.
	ErrToolUnavailable = errors.New("tool unavailable")
	// ErrTimeout means a bounded extraction ran out of time.
	ErrTimeout = errors.New("extraction timed out")
	// ErrResourceExhausted means an upload exceeded the configured size ceiling.
	ErrResourceExhausted = errors.New("resource exhausted")
)
