// Package relay fans out per-instance notifications to a sink (the UI layer)
// and periodically flushes chat history to log files on disk.
package relay

import "time"

// PayloadKind tags a notification payload.
type PayloadKind string

const (
	PayloadChat       PayloadKind = "chat"
	PayloadDisconnect PayloadKind = "disconnect"
	PayloadConnect    PayloadKind = "connect"
)

// Payload is the notification body delivered alongside an instance id.
type Payload struct {
	Kind    PayloadKind `json:"kind"`
	Message string      `json:"message,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Latency int64       `json:"latency,omitempty"` // milliseconds
}

func ChatPayload(message string) Payload {
	return Payload{Kind: PayloadChat, Message: message}
}

func DisconnectPayload(reason string) Payload {
	return Payload{Kind: PayloadDisconnect, Reason: reason}
}

func ConnectPayload(latency time.Duration) Payload {
	return Payload{Kind: PayloadConnect, Latency: latency.Milliseconds()}
}
