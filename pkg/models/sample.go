package models

import "time"

// Sample is one reading of the monitored resources
type Sample struct {
	CPUFraction    float64 // 0..1
	MemoryFraction float64 // 0..1
	NetworkRate    float64 // bytes/s, mean of sent and received
	Timestamp      time.Time
}
