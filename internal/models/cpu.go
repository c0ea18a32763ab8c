package models

// CPUStats represents CPU usage information
type CPUStats struct {
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
}
