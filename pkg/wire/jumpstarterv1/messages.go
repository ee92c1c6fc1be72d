// Package jumpstarterv1 carries the wire messages and gRPC service
// definitions for ControllerService (client-facing methods only —
// the Controller server itself is an external collaborator), ExporterService,
// and RouterService.
//
// There is no protoc toolchain available in this environment, so these
// messages are plain Go structs marshaled with encoding/json rather than
// protoc-gen-go output; see the codec in codec.go and DESIGN.md for the
// rationale. The RPC shapes, field names and semantics mirror the real
// jumpstarter.v1 proto package exactly.
package jumpstarterv1

import "google.golang.org/protobuf/types/known/structpb"

// --- ControllerService ------------------------------------------------

type RegisterRequest struct {
	Labels  map[string]string `json:"labels"`
	Reports []*DriverInstanceReport `json:"reports"`
}

type RegisterResponse struct {
	UUID string `json:"uuid"`
}

type UnregisterRequest struct {
	Reason string `json:"reason"`
}

type UnregisterResponse struct{}

type ListenRequest struct {
	LeaseName string `json:"lease_name"`
}

type ListenResponse struct {
	RouterEndpoint string `json:"router_endpoint"`
	RouterToken    string `json:"router_token"`
}

type DialRequest struct {
	LeaseName string `json:"lease_name"`
}

type DialResponse struct {
	RouterEndpoint string `json:"router_endpoint"`
	RouterToken    string `json:"router_token"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Leased     bool   `json:"leased"`
	LeaseName  string `json:"lease_name"`
	ClientName string `json:"client_name"`
}

// LabelSelector is the Kubernetes-style label query attached to a lease
// request.
type LabelSelector struct {
	MatchLabels map[string]string `json:"match_labels"`
}

type CreateLeaseRequest struct {
	Selector        LabelSelector `json:"selector"`
	DurationSeconds int64         `json:"duration_seconds"`
	Name            string        `json:"name,omitempty"`
}

type CreateLeaseResponse struct {
	Name string `json:"name"`
}

type GetLeaseRequest struct {
	Name string `json:"name"`
}

// Condition is a Kubernetes-style condition: {type, status, reason, message}.
type Condition struct {
	Type    string `json:"type"`
	Status  string `json:"status"` // "True" | "False" | "Unknown"
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type GetLeaseResponse struct {
	Name                string      `json:"name"`
	Selector            LabelSelector `json:"selector"`
	DurationSeconds     int64       `json:"duration_seconds"`
	EffectiveBeginTime  *int64      `json:"effective_begin_time,omitempty"`
	EffectiveEndTime    *int64      `json:"effective_end_time,omitempty"`
	ExporterUUID        string      `json:"exporter_uuid,omitempty"`
	Conditions          []Condition `json:"conditions"`
}

type DeleteLeaseRequest struct {
	Name string `json:"name"`
}

type DeleteLeaseResponse struct{}

type ListLeasesRequest struct{}

type ListLeasesResponse struct {
	Names []string `json:"names"`
}

type ListExportersRequest struct {
	Selector LabelSelector `json:"selector"`
}

type ExporterSummary struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
}

type ListExportersResponse struct {
	Exporters []ExporterSummary `json:"exporters"`
}

// --- ExporterService ----------------------------------------------------

type Empty struct{}

// DriverInstanceReport is the flat per-driver record produced by a
// pre-order enumeration of the driver tree.
type DriverInstanceReport struct {
	UUID               string            `json:"uuid"`
	ParentUUID         string            `json:"parent_uuid,omitempty"`
	Labels             map[string]string `json:"labels"`
	Description        string            `json:"description,omitempty"`
	MethodsDescription map[string]string `json:"methods_description,omitempty"`
}

type GetReportResponse struct {
	UUID    string                  `json:"uuid"`
	Labels  map[string]string       `json:"labels"`
	Reports []*DriverInstanceReport `json:"reports"`
}

type DriverCallRequest struct {
	UUID   string              `json:"uuid"`
	Method string              `json:"method"`
	Args   []*structpb.Value   `json:"args"`
}

type DriverCallResponse struct {
	UUID   string            `json:"uuid"`
	Result *structpb.Value   `json:"result"`
}

type StreamingDriverCallRequest struct {
	UUID   string            `json:"uuid"`
	Method string            `json:"method"`
	Args   []*structpb.Value `json:"args"`
}

type StreamingDriverCallResponse struct {
	UUID   string          `json:"uuid"`
	Result *structpb.Value `json:"result"`
}

// Severity mirrors the log levels carried over LogStream.
type Severity int32

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

type LogStreamResponse struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Source   string   `json:"source"`
}

// ExporterStatus enumerates the exporter lifecycle phases of the lease
// state machine.
type ExporterStatus int32

const (
	StatusAvailable ExporterStatus = iota
	StatusBeforeLeaseHook
	StatusLeaseReady
	StatusAfterLeaseHook
	StatusBeforeLeaseHookFailed
	StatusAfterLeaseHookFailed
)

func (s ExporterStatus) String() string {
	switch s {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusBeforeLeaseHook:
		return "BEFORE_LEASE_HOOK"
	case StatusLeaseReady:
		return "LEASE_READY"
	case StatusAfterLeaseHook:
		return "AFTER_LEASE_HOOK"
	case StatusBeforeLeaseHookFailed:
		return "BEFORE_LEASE_HOOK_FAILED"
	case StatusAfterLeaseHookFailed:
		return "AFTER_LEASE_HOOK_FAILED"
	default:
		return "UNKNOWN"
	}
}

type GetStatusResponse struct {
	Status        ExporterStatus `json:"status"`
	StatusMessage string         `json:"status_message"`
}

// --- RouterService --------------------------------------------------

// FrameType mirrors jumpstarter.v1.FrameType; only DATA frames are produced
// by this implementation, the rest are accepted but ignored on receive.
type FrameType int32

const (
	FrameTypeData      FrameType = 0
	FrameTypeRstStream FrameType = 3
	FrameTypePing      FrameType = 6
	FrameTypeGoaway    FrameType = 7
)

// StreamRequest/StreamResponse are the frames exchanged over the Stream
// bidi RPC in both ExporterService and RouterService. CloseWrite models
// the half-close ("send_eof") signal: a frame with CloseWrite=true and no
// payload.
type StreamRequest struct {
	Payload    []byte    `json:"payload,omitempty"`
	FrameType  FrameType `json:"frame_type,omitempty"`
	CloseWrite bool      `json:"close_write,omitempty"`
}

type StreamResponse struct {
	Payload    []byte    `json:"payload,omitempty"`
	FrameType  FrameType `json:"frame_type,omitempty"`
	CloseWrite bool      `json:"close_write,omitempty"`
}
