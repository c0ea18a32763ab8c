package models

// LogFile describes a readable file in the agent's log directory
type LogFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// LogFileList is the envelope returned by GET /api/logs/list
type LogFileList struct {
	LogFiles []LogFile `json:"log_files"`
}

// LogTail holds the last lines of a log file, oldest first
type LogTail struct {
	Logs       []string `json:"logs"`
	File       string   `json:"file"`
	TotalLines int      `json:"total_lines"`
}
