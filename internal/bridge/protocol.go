// Package bridge connects the UI shell to the monitor over a unix socket.
//
// Each connection carries newline-delimited JSON. Clients send Request
// values and receive one Response per request, matched by ID. After an
// events.subscribe request the connection switches to a stream of Event
// values pushed by the daemon.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// Methods handled by the daemon.
const (
	MethodListApps          = "apps.listInstallableApps"
	MethodBlockedGet        = "blocked.get"
	MethodBlockedSet        = "blocked.set"
	MethodBlockedAdd        = "blocked.add"
	MethodBlockedRemove     = "blocked.remove"
	MethodPermissionCheck   = "permissions.check"
	MethodPermissionRequest = "permissions.request"
	MethodMonitoringStart   = "monitoring.start"
	MethodMonitoringStop    = "monitoring.stop"
	MethodMonitoringStatus  = "monitoring.status"
	MethodShowBlockedScreen = "navigation.showBlockedScreen"
	MethodSubscribe         = "events.subscribe"
)

// Events pushed to subscribers.
const (
	EventNavigateToBlockedScreen = "navigateToBlockedScreen"
	EventBlockedAppsChanged      = "blockedAppsChanged"
)

// ErrUnknownMethod is returned for requests naming no handler.
var ErrUnknownMethod = errors.New("unknown method")

// Request is a call from the UI shell or CLI.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Response answers one Request.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Event is an unsolicited push to subscribers.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PackageArgs names one package.
type PackageArgs struct {
	PackageName string `json:"packageName"`
}

// PackagesArgs carries a full blocked set.
type PackagesArgs struct {
	Packages []string `json:"packages"`
}

// PermissionArgs names a permission kind.
type PermissionArgs struct {
	Kind domain.PermissionKind `json:"kind"`
}

// MonitoringStatus is the result of monitoring.status.
type MonitoringStatus struct {
	Running bool                `json:"running"`
	State   domain.MonitorState `json:"state"`
}

// NewRequest builds a request with a fresh ID.
func NewRequest(method string, args any) (*Request, error) {
	req := &Request{ID: uuid.NewString(), Method: method}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s args: %w", method, err)
		}
		req.Args = data
	}
	return req, nil
}

// NewEvent builds an event with JSON-encoded data.
func NewEvent(name string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s event: %w", name, err)
	}
	return Event{Event: name, Data: raw}, nil
}

func okResponse(id string, result any) *Response {
	resp := &Response{ID: id, OK: true}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return errResponse(id, fmt.Errorf("failed to encode result: %w", err))
		}
		resp.Result = data
	}
	return resp
}

func errResponse(id string, err error) *Response {
	return &Response{ID: id, Error: err.Error()}
}
