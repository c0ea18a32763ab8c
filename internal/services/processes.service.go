package services

import (
	"context"
	"errors"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/high001/webpanel/internal/models"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrAccessDenied    = errors.New("access denied")
)

// ProcessService lists and signals host processes
type ProcessService struct{}

func NewProcessService() *ProcessService {
	return &ProcessService{}
}

// List returns every readable process sorted by memory usage, highest first.
// Processes that vanish or deny access while being read are skipped.
func (ps *ProcessService) List(ctx context.Context) ([]models.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.ProcessInfo, 0, len(procs))
	seenPIDs := make(map[int32]bool, len(procs))
	for _, p := range procs {
		if seenPIDs[p.Pid] {
			continue
		}
		seenPIDs[p.Pid] = true

		info, ok := describeProcess(ctx, p)
		if !ok {
			continue
		}
		result = append(result, info)
	}

	sortByMemory(result)
	return result, nil
}

func describeProcess(ctx context.Context, p *process.Process) (models.ProcessInfo, bool) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return models.ProcessInfo{}, false
	}

	info := models.ProcessInfo{PID: p.Pid, Name: name, Status: "unknown"}
	if user, err := p.UsernameWithContext(ctx); err == nil {
		info.Username = user
	}
	if cpuPercent, err := p.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = cpuPercent
	}
	if memPercent, err := p.MemoryPercentWithContext(ctx); err == nil {
		info.MemoryPercent = memPercent
	}
	if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
		info.Status = mapProcessState(status[0])
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		info.CreateTime = time.UnixMilli(created).Format("2006-01-02T15:04:05")
	}
	return info, true
}

// sortByMemory orders processes by memory usage descending, PID ascending on ties
func sortByMemory(procs []models.ProcessInfo) {
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].MemoryPercent != procs[j].MemoryPercent {
			return procs[i].MemoryPercent > procs[j].MemoryPercent
		}
		return procs[i].PID < procs[j].PID
	})
}

// Kill sends SIGTERM to pid
func (ps *ProcessService) Kill(ctx context.Context, pid int32) error {
	if pid <= 0 {
		return ErrProcessNotFound
	}
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return classifySignalError(err)
	}
	if !exists {
		return ErrProcessNotFound
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return classifySignalError(err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return classifySignalError(err)
	}
	return nil
}

func classifySignalError(err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, syscall.ESRCH):
		return ErrProcessNotFound
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EPERM):
		return ErrAccessDenied
	}
	return err
}

// mapProcessState converts gopsutil states and raw /proc codes to readable strings
func mapProcessState(state string) string {
	switch state {
	case process.Running:
		return "running"
	case process.Sleep:
		return "sleeping"
	case process.Stop:
		return "stopped"
	case process.Idle:
		return "idle"
	case process.Zombie:
		return "zombie"
	case process.Wait:
		return "waiting"
	case process.Lock:
		return "locked"
	case "":
		return "unknown"
	}
	if len(state) != 1 {
		return state
	}
	switch state[0] {
	case 'R':
		return "running"
	case 'S':
		return "sleeping"
	case 'D':
		return "disk_sleep"
	case 'Z':
		return "zombie"
	case 'T':
		return "stopped"
	case 't':
		return "tracing_stop"
	case 'W':
		return "paging"
	case 'X', 'x':
		return "dead"
	case 'K':
		return "wakekill"
	case 'P':
		return "parked"
	default:
		return state
	}
}
