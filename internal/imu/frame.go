package imu

// Frame mirrors one response sent to the socket client.
type Frame struct {
	Command     byte     `json:"command"`
	Sensors     []Vector `json:"sensors,omitempty"`
	Distance    byte     `json:"distance"`
	HasDistance bool     `json:"has_distance"`
	Time        string   `json:"time"` // RFC3339
}
