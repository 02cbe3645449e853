// Package victordb contains the shared primitives of the victordb servers :
// result codes, sentinel errors and build-time limits. The actual subsystems
// live in the pkg/ subpackages (proto, wal, server, index, table, ...).
package victordb

// MaxMsgLen is the maximum serialized payload length in bytes.
// The frame header reserves 28 bits for the length field.
const MaxMsgLen = 1<<28 - 1

// MaxConnections is the default size of a server connection table.
// Clients accepted beyond this limit are closed immediately.
const MaxConnections = 128

// DefaultExportThreshold is the number of accumulated mutations after which
// a checkpoint is attempted, unless overridden by configuration.
const DefaultExportThreshold = 10

// ResultCode is the numeric class of an operation result on the wire.
// Code 0 means success, any other value is a failure class.
type ResultCode uint32

const (
	CodeSuccess ResultCode = iota
	CodeProtocol
	CodeDuplicate
	CodeNotFound
	CodeInvalidDimensions
	CodeSystem
)

func (c ResultCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeProtocol:
		return "protocol error"
	case CodeDuplicate:
		return "duplicate entry"
	case CodeNotFound:
		return "not found"
	case CodeInvalidDimensions:
		return "invalid dimensions"
	case CodeSystem:
		return "system error"
	default:
		return "unknown"
	}
}

// CodeOf maps an error returned by one of the collaborators to its wire
// result code. Unrecognized errors are classified as system failures.
func CodeOf(err error) ResultCode {
	switch {
	case err == nil:
		return CodeSuccess
	case IsError(err, ErrDuplicateEntry):
		return CodeDuplicate
	case IsError(err, ErrNotFound):
		return CodeNotFound
	case IsError(err, ErrInvalidDimensions):
		return CodeInvalidDimensions
	case IsError(err, ErrMessageTooLong), IsError(err, ErrMalformedMessage):
		return CodeProtocol
	default:
		return CodeSystem
	}
}
