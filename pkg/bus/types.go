package bus

import "time"

// Inbound is one raw update payload delivered by a transport source.
type Inbound struct {
	Source     string    `json:"source"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
