package models

// ServiceInfo is one systemd service unit
type ServiceInfo struct {
	Name        string `json:"name"`
	Load        string `json:"load"`
	Active      string `json:"active"`
	Sub         string `json:"sub"`
	Description string `json:"description"`
}

// ServiceList is the envelope returned by GET /api/services
type ServiceList struct {
	Services []ServiceInfo `json:"services"`
}

// Service actions accepted by POST /api/services/{name}/{action}
const (
	ServiceStart   = "start"
	ServiceStop    = "stop"
	ServiceRestart = "restart"
	ServiceReload  = "reload"
)

// ValidServiceAction reports whether action is one the agent accepts
func ValidServiceAction(action string) bool {
	switch action {
	case ServiceStart, ServiceStop, ServiceRestart, ServiceReload:
		return true
	}
	return false
}
