package imu

import "fmt"

// Vector is one 3-axis acceleration sample in signed 8-bit counts.
type Vector struct {
	X int8 `json:"x"`
	Y int8 `json:"y"`
	Z int8 `json:"z"`
}

func (v Vector) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z)
}

// Bytes returns the wire encoding: one two's-complement byte per axis.
func (v Vector) Bytes() [3]byte {
	return [3]byte{byte(v.X), byte(v.Y), byte(v.Z)}
}
