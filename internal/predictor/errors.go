package predictor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// User-facing messages surfaced on the dashboard.
const (
	MsgUnreachable     = "Failed to fetch. The backend service may be down or crashing."
	MsgFeatureMismatch = "Data format error: The number of features sent does not match the model's expectation. Please check the data."
	MsgServiceError    = "Prediction service error."
)

const featureMismatchMarker = "Input data has"

var (
	ErrUnreachable     = errors.New("prediction service unreachable")
	ErrFeatureMismatch = errors.New("feature count mismatch")
	ErrRejected        = errors.New("prediction rejected")
)

type Kind int

const (
	KindTransport Kind = iota
	KindUnparsable
	KindMalformed
	KindFeatureMismatch
	KindDetail
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnparsable:
		return "unparsable"
	case KindMalformed:
		return "malformed"
	case KindFeatureMismatch:
		return "feature_mismatch"
	case KindDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// Error is the single failure type returned by Client. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindTransport || e.Kind == KindUnparsable || e.Kind == KindMalformed
	case ErrFeatureMismatch:
		return e.Kind == KindFeatureMismatch
	case ErrRejected:
		return e.Kind == KindFeatureMismatch || e.Kind == KindDetail
	}
	return false
}

// UserMessage extracts the display text from any error returned by Client.
func UserMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return MsgUnreachable
}

type DetailKind int

const (
	DetailAbsent DetailKind = iota
	StringDetail
	StructuredDetail
	Unparsable
)

// Detail is the error body of a non-2xx response, decoded once.
type Detail struct {
	Kind DetailKind
	Text string
	Raw  json.RawMessage
}

func parseDetail(body []byte) Detail {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Detail{Kind: Unparsable}
	}
	raw := bytes.TrimSpace(payload.Detail)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Detail{Kind: DetailAbsent}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return Detail{Kind: DetailAbsent}
		}
		return Detail{Kind: StringDetail, Text: text}
	}
	return Detail{Kind: StructuredDetail, Text: string(raw), Raw: raw}
}

func (d Detail) toError(status int) *Error {
	switch d.Kind {
	case Unparsable:
		return &Error{Kind: KindUnparsable, Status: status, Message: MsgUnreachable,
			Err: fmt.Errorf("status %d with non-JSON body", status)}
	case StringDetail:
		if strings.Contains(d.Text, featureMismatchMarker) {
			return &Error{Kind: KindFeatureMismatch, Status: status, Message: MsgFeatureMismatch,
				Err: errors.New(d.Text)}
		}
		return &Error{Kind: KindDetail, Status: status, Message: d.Text}
	case StructuredDetail:
		return &Error{Kind: KindDetail, Status: status, Message: d.Text}
	default:
		return &Error{Kind: KindDetail, Status: status, Message: MsgServiceError}
	}
}
