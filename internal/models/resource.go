package models

// Resource names a class of remote state the console polls or mutates
type Resource string

const (
	ResourceMetrics   Resource = "metrics"
	ResourceProcesses Resource = "processes"
	ResourceServices  Resource = "services"
	ResourceFiles     Resource = "files"
	ResourceLogFiles  Resource = "logs.list"
	ResourceLogs      Resource = "logs"
	ResourceUsers     Resource = "users"
	ResourceCommand   Resource = "command"
)

func (r Resource) String() string {
	return string(r)
}
