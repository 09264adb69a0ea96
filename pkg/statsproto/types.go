package statsproto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidOps reports a request whose ops field is missing or not an
// array. The message is part of the API contract.
var ErrInvalidOps = errors.New("Missing or invalid ops (must be array)")

// UpdateRequest is the body of a stats update call. Operations are kept as
// raw JSON here; decoding and validation happen in the patch engine.
type UpdateRequest struct {
	AppName         string            `json:"appName"`
	Ops             []json.RawMessage `json:"ops"`
	CreateIfMissing *bool             `json:"createIfMissing,omitempty"` // defaults to true
	DryRun          bool              `json:"dryRun,omitempty"`
	IfMatchETag     string            `json:"ifMatchEtag,omitempty"`
}

// UnmarshalJSON decodes the request, distinguishing a missing or non-array
// ops field (ErrInvalidOps) from a body that is not JSON at all.
func (r *UpdateRequest) UnmarshalJSON(data []byte) error {
	type plain UpdateRequest
	aux := struct {
		Ops json.RawMessage `json:"ops"`
		*plain
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Ops) == 0 || bytes.Equal(aux.Ops, []byte("null")) {
		return ErrInvalidOps
	}
	if err := json.Unmarshal(aux.Ops, &r.Ops); err != nil {
		return ErrInvalidOps
	}
	return nil
}

// CreateOK reports whether a missing document may be initialized for this
// request. Absent means yes.
func (r *UpdateRequest) CreateOK() bool {
	return r.CreateIfMissing == nil || *r.CreateIfMissing
}

// UpdateResponse is the success envelope of a stats update call.
type UpdateResponse struct {
	OK        bool   `json:"ok"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Stats     any    `json:"stats"`
	ETag      string `json:"etag,omitempty"`
	VersionID string `json:"versionId,omitempty"`
	DryRun    bool   `json:"dryRun"`
}

// ErrorResponse is the failure envelope for both client and server errors.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// NewErrorResponse builds the failure envelope for an error message.
func NewErrorResponse(msg string) *ErrorResponse {
	return &ErrorResponse{OK: false, Error: msg}
}

// ValidateAppName checks that an application name is usable as the first
// component of a storage key. Names containing path separators, relative
// path segments or control characters are rejected rather than escaped, so
// the key layout "<appName>/stats.json" stays readable.
func ValidateAppName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("missing or invalid appName")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid appName: %q", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid appName: must not contain path separators")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("invalid appName: must not contain control characters")
		}
	}
	return nil
}
