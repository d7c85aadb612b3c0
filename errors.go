// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wakebeacon

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"
)

// Filter errors
var (
	// ErrFilterDisabled is returned by Decode while the filter is disabled.
	ErrFilterDisabled = errors.New("wake filter disabled")
	// ErrFrameDropped is the category of every structural or freshness rejection.
	// The concrete cause is carried by a *DropError.
	ErrFrameDropped = errors.New("wake frame dropped")
	// ErrDuplicate is reserved for duplicate detection. Nothing returns it.
	ErrDuplicate = errors.New("wake frame duplicate")
	// ErrFatal is reserved for unrecoverable internal errors. Nothing returns it.
	ErrFatal = errors.New("wake filter fatal error")

	// ErrShortBuffer is returned by the codec when a buffer cannot hold a frame.
	ErrShortBuffer = errors.New("buffer too short for wake frame")
	// ErrBadLengthPrefix is returned when a transmit buffer's length byte
	// disagrees with the buffer it prefixes.
	ErrBadLengthPrefix = errors.New("bad transmit length prefix")
)

// Radio errors - potentially retryable
var (
	ErrRadioTimeout  = errors.New("radio timeout")
	ErrRadioWrite    = errors.New("radio write failed")
	ErrRadioRead     = errors.New("radio read failed")
	ErrFCSMismatch   = errors.New("frame check sequence mismatch")
	ErrRadioNotReady = errors.New("radio not ready")
)

// Radio errors - not retryable
var (
	ErrRadioClosed      = errors.New("radio is closed")
	ErrRadioNotFound    = errors.New("radio not found")
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Result is the outcome of a decode, in the numbering used by deployed nodes.
type Result uint8

const (
	// ResultSuccess means the frame was accepted and the node woken.
	ResultSuccess Result = iota
	// ResultFatal is reserved for unrecoverable internal errors.
	ResultFatal
	// ResultDropped means the frame failed a structural or freshness check.
	ResultDropped
	// ResultDuplicate is reserved for duplicate detection.
	ResultDuplicate
	// ResultDisabled means the filter was not enabled.
	ResultDisabled
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFatal:
		return "fatal"
	case ResultDropped:
		return "dropped"
	case ResultDuplicate:
		return "duplicate"
	case ResultDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// ResultOf maps an error returned by [Filter.Decode] to its Result.
// Unknown errors map to ResultFatal.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrFilterDisabled):
		return ResultDisabled
	case errors.Is(err, ErrFrameDropped):
		return ResultDropped
	case errors.Is(err, ErrDuplicate):
		return ResultDuplicate
	default:
		return ResultFatal
	}
}

// DropReason says which check rejected a frame.
type DropReason int

const (
	// DropShortFrame means the receive buffer was shorter than a wake frame.
	DropShortFrame DropReason = iota
	// DropFrameControl means the frame-control word was not FrameControlWake.
	DropFrameControl
	// DropPANID means the PAN identifier did not match the configured PAN.
	DropPANID
	// DropDestination means the destination was not the broadcast address.
	DropDestination
	// DropSource means the source was not the broadcast address.
	DropSource
	// DropStaleCounter means the freshness counter failed the replay check.
	DropStaleCounter
)

// String returns a short name for the reason.
func (r DropReason) String() string {
	switch r {
	case DropShortFrame:
		return "short frame"
	case DropFrameControl:
		return "frame control mismatch"
	case DropPANID:
		return "PAN ID mismatch"
	case DropDestination:
		return "destination not broadcast"
	case DropSource:
		return "source not broadcast"
	case DropStaleCounter:
		return "stale freshness counter"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// DropError describes a dropped frame. It unwraps to ErrFrameDropped and,
// for short frames, to ErrShortBuffer as well.
type DropError struct {
	Err    error // Underlying cause, if any
	Reason DropReason
	Got    uint16 // Offending value as read from the frame
	Want   uint16 // Value the filter expected
}

func (e *DropError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrFrameDropped, e.Reason, e.Err)
	}
	if e.Reason == DropStaleCounter {
		return fmt.Sprintf("%v: %s (counter %d, last accepted %d)", ErrFrameDropped, e.Reason, e.Got, e.Want)
	}
	return fmt.Sprintf("%v: %s (got 0x%04X, want 0x%04X)", ErrFrameDropped, e.Reason, e.Got, e.Want)
}

// Unwrap exposes both the drop category and the underlying cause.
func (e *DropError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFrameDropped, e.Err}
	}
	return []error{ErrFrameDropped}
}

// DropReasonOf returns the reason of a dropped frame error.
func DropReasonOf(err error) (DropReason, bool) {
	var de *DropError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return 0, false
}

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// RadioError wraps radio-level errors with additional context
type RadioError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *RadioError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RadioError) Unwrap() error {
	return e.Err
}

// NewRadioError creates a radio error with consistent formatting
func NewRadioError(op, port string, err error, errType ErrorType) *RadioError {
	return &RadioError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a timeout error for radio operations
func NewTimeoutError(op, port string) *RadioError {
	return NewRadioError(op, port, ErrRadioTimeout, ErrorTypeTimeout)
}

// NewFCSMismatchError creates a frame check sequence error (transient)
func NewFCSMismatchError(op, port string) *RadioError {
	return NewRadioError(op, port, ErrFCSMismatch, ErrorTypeTransient)
}

// NewFrameTooLargeError creates a frame too large error (permanent)
func NewFrameTooLargeError(op, port string) *RadioError {
	return NewRadioError(op, port, ErrFrameTooLarge, ErrorTypePermanent)
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var re *RadioError
	if errors.As(err, &re) {
		return re.Retryable
	}

	switch {
	case errors.Is(err, ErrRadioTimeout),
		errors.Is(err, ErrRadioRead),
		errors.Is(err, ErrRadioWrite),
		errors.Is(err, ErrRadioNotReady),
		errors.Is(err, ErrFCSMismatch):
		return true
	default:
		return false
	}
}

// IsTimeout returns true for receive timeouts, which a listener treats as
// an idle channel rather than a failure.
func IsTimeout(err error) bool {
	var re *RadioError
	if errors.As(err, &re) && re.Type == ErrorTypeTimeout {
		return true
	}
	return errors.Is(err, ErrRadioTimeout)
}

// IsFatal returns true if the error indicates the radio is gone and the
// receive loop should stop entirely.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var re *RadioError
	if errors.As(err, &re) {
		return re.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrRadioClosed),
		errors.Is(err, ErrRadioNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors indicating a USB dongle was
// unplugged during I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}
