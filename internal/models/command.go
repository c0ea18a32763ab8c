package models

// CommandRequest is the body of POST /api/command
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResult is the outcome of one shell command execution
type CommandResult struct {
	Success    bool   `json:"success"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
}
