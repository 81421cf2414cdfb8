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

package xbee

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-xbee/internal/frame"
)

// Error categories for transaction results and retry logic
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Link errors raised by the frame decoder
	ErrChecksumMismatch = frame.ErrChecksumMismatch
	ErrInvalidLength    = frame.ErrInvalidLength
	ErrTruncatedFrame   = frame.ErrTruncatedFrame
	ErrBufferFull       = errors.New("receive buffer full")

	// Transaction errors
	ErrTimeout        = errors.New("transaction timed out")
	ErrChainAborted   = errors.New("preceding transaction in chain failed")
	ErrCommandFailed  = errors.New("command failed")
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrNoCapacity     = errors.New("payload budget too small for any data")

	// Device errors - generally not retryable
	ErrDeviceNotFound    = errors.New("device not found")
	ErrNotAPIMode        = errors.New("radio is not in API mode")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrInvalidResponse   = errors.New("invalid response format")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrPeerNotDiscovered = errors.New("peer not discovered")
)

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

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error with context
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// ErrorKind classifies why a transaction ended in failure.
type ErrorKind int

const (
	// KindNone means err carries no transaction failure.
	KindNone ErrorKind = iota
	// KindStatus means the radio answered with a failing status byte.
	KindStatus
	// KindTimeout means no matching reply arrived and retries ran out.
	KindTimeout
	// KindChain means an earlier link of the same chain failed.
	KindChain
	// KindBuild means the request frame could not be built.
	KindBuild
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStatus:
		return "status"
	case KindTimeout:
		return "timeout"
	case KindChain:
		return "chain"
	case KindBuild:
		return "build"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// TransactionError describes a failed transaction. Err is one of
// ErrCommandFailed, ErrDeliveryFailed, ErrTimeout, ErrChainAborted or
// ErrNoCapacity so callers can use errors.Is.
type TransactionError struct {
	Err     error
	Command Command
	Kind    ErrorKind
	APIID   APIID
	FrameID byte
	Status  byte
}

func (e *TransactionError) Error() string {
	op := e.APIID.String()
	if e.Command != (Command{}) {
		op += " " + e.Command.String()
	}
	if e.FrameID != 0 {
		op += fmt.Sprintf(" (frame %d)", e.FrameID)
	}

	switch {
	case e.Kind != KindStatus:
		return fmt.Sprintf("%s: %v", op, e.Err)
	case errors.Is(e.Err, ErrCommandFailed):
		return fmt.Sprintf("%s: %v: %s (0x%02X)", op, e.Err, CommandStatus(e.Status), e.Status)
	case errors.Is(e.Err, ErrDeliveryFailed):
		return fmt.Sprintf("%s: %v: %s (0x%02X)", op, e.Err, DeliveryStatus(e.Status), e.Status)
	default:
		return fmt.Sprintf("%s: %v", op, e.Err)
	}
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var txe *TransactionError
	if errors.As(err, &txe) {
		switch txe.Kind {
		case KindTimeout:
			return true
		case KindStatus:
			return errors.Is(txe.Err, ErrDeliveryFailed) && DeliveryStatus(txe.Status).Transient()
		default:
			return false
		}
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrBufferFull),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the radio or its port is gone
// and servicing should stop entirely. This is distinct from IsRetryable which
// indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrNotAPIMode),
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

// isDeviceGoneError checks for OS-level errors indicating the USB serial
// adapter was unplugged during I/O.
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

// IsTimeout reports whether err is a transaction that ran out of retries.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsChainAborted reports whether err was inherited from an earlier link.
func IsChainAborted(err error) bool {
	return errors.Is(err, ErrChainAborted)
}

// IsStatus reports whether err is a failing reply status.
func IsStatus(err error) bool {
	return KindOf(err) == KindStatus
}

// KindOf returns the kind of the outermost TransactionError in err.
func KindOf(err error) ErrorKind {
	var te *TransactionError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNone
}
