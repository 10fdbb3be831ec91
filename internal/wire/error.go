package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrKind classifies a failure surfaced to the client, matching §7's
// error handling design.
type ErrKind int

const (
	ErrValidation ErrKind = iota
	ErrUnavailable
	ErrTransient
	ErrInternal
	ErrReadOnly
)

// Severity is the client-visible severity tag of an ErrorData message,
// independent of the process-local monitoring.Logf severity prefixes.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// DefaultSeverity maps an ErrKind to the severity policy in §7:
// validation errors are DEBUG/WARNING and don't abort a batch; everything
// else surfaces as ERROR.
func DefaultSeverity(kind ErrKind) Severity {
	switch kind {
	case ErrValidation:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// ErrorData is the structured error payload sent to the client in place
// of, or alongside, a failed operation's response.
type ErrorData struct {
	Kind     ErrKind
	Message  string
	Tags     []string
	Severity Severity
}

// Error implements the error interface so ErrorData can be returned and
// wrapped like any other Go error up to the task boundary.
func (e *ErrorData) Error() string { return e.Message }

// NewError builds an ErrorData with the default severity for kind.
func NewError(kind ErrKind, message string, tags ...string) *ErrorData {
	return &ErrorData{Kind: kind, Message: message, Tags: tags, Severity: DefaultSeverity(kind)}
}

const (
	fieldErrorKind     = 1
	fieldErrorMessage  = 2
	fieldErrorTags     = 3
	fieldErrorSeverity = 4
)

// EncodeErrorData serializes e as a protowire message body.
func EncodeErrorData(e *ErrorData) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldErrorKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind))
	b = protowire.AppendTag(b, fieldErrorMessage, protowire.BytesType)
	b = protowire.AppendString(b, e.Message)
	for _, tag := range e.Tags {
		b = protowire.AppendTag(b, fieldErrorTags, protowire.BytesType)
		b = protowire.AppendString(b, tag)
	}
	b = protowire.AppendTag(b, fieldErrorSeverity, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Severity))
	return b
}

// DecodeErrorData parses the body produced by EncodeErrorData.
func DecodeErrorData(buf []byte) (*ErrorData, error) {
	e := &ErrorData{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		buf = buf[n:]
		switch num {
		case fieldErrorKind:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Kind = ErrKind(v)
			buf = buf[n:]
		case fieldErrorMessage:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Message = v
			buf = buf[n:]
		case fieldErrorTags:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Tags = append(e.Tags, v)
			buf = buf[n:]
		case fieldErrorSeverity:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e.Severity = Severity(v)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
		}
	}
	return e, nil
}
