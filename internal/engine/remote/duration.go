package remote

import (
	"math"
	"time"
)

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
