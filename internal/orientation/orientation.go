package orientation

import (
	"math"

	"github.com/relabs-tech/sensor_hub/internal/imu"
)

// Pose is the tilt of one sensor in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is always 0; there is no magnetometer.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// PoseFromVector is ComputePoseFromAccel for a filtered sensor vector.
func PoseFromVector(v imu.Vector) Pose {
	return ComputePoseFromAccel(float64(v.X), float64(v.Y), float64(v.Z))
}
