package models

type ProcessInfo struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	Username      string  `json:"username"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float32 `json:"memory_percent"`
	Status        string  `json:"status"`
	CreateTime    string  `json:"create_time"`
}

// ProcessList is the envelope returned by GET /api/processes
type ProcessList struct {
	Processes []ProcessInfo `json:"processes"`
}
