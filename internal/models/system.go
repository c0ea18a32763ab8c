package models

// Uptime is the time since boot split the way the dashboard shows it
type Uptime struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// DashboardStats combines all host metrics shown on the dashboard
type DashboardStats struct {
	CPU       CPUStats    `json:"cpu"`
	Memory    MemoryStats `json:"memory"`
	Disk      DiskStats   `json:"disk"`
	IPAddress string      `json:"ip_address"`
	Hostname  string      `json:"hostname"`
	Uptime    Uptime      `json:"uptime"`
}
