package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/high001/webpanel/internal/models"
)

var (
	ErrInvalidAction  = errors.New("invalid action")
	ErrInvalidService = errors.New("invalid service name")
)

// SystemdService lists units and runs start/stop/restart/reload through systemctl
type SystemdService struct {
	runner  Runner
	timeout time.Duration
}

func NewSystemdService(runner Runner) *SystemdService {
	return &SystemdService{runner: runner, timeout: 10 * time.Second}
}

// List returns every loaded service unit
func (s *SystemdService) List(ctx context.Context) ([]models.ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := runChecked(ctx, s.runner, "", "systemctl", "list-units", "--type=service", "--all", "--no-pager", "--no-legend", "--plain")
	if err != nil {
		return nil, err
	}
	return parseUnits(res.Stdout), nil
}

// parseUnits parses `systemctl list-units --no-legend` output. Lines with
// fewer than four columns are skipped.
func parseUnits(out string) []models.ServiceInfo {
	services := make([]models.ServiceInfo, 0)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		// failed units are prefixed with a bullet in non-plain output
		if len(fields) > 0 && (fields[0] == "●" || fields[0] == "*") {
			fields = fields[1:]
		}
		if len(fields) < 4 {
			continue
		}
		services = append(services, models.ServiceInfo{
			Name:        fields[0],
			Load:        fields[1],
			Active:      fields[2],
			Sub:         fields[3],
			Description: strings.Join(fields[4:], " "),
		})
	}
	return services
}

// Action runs one of start, stop, restart or reload on the unit name
func (s *SystemdService) Action(ctx context.Context, name, action string) error {
	if !models.ValidServiceAction(action) {
		return ErrInvalidAction
	}
	if !validUnitName(name) {
		return ErrInvalidService
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := runChecked(ctx, s.runner, "", "systemctl", action, name)
	return err
}

func validUnitName(name string) bool {
	if name == "" || len(name) > 256 || strings.HasPrefix(name, "-") {
		return false
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			strings.ContainsRune(":-_.@\\", c)) {
			return false
		}
	}
	return true
}

// ActionPastTense renders the success message verb of a service action
func ActionPastTense(action string) string {
	switch action {
	case models.ServiceStop:
		return "stopped"
	case models.ServiceStart:
		return "started"
	case models.ServiceRestart:
		return "restarted"
	case models.ServiceReload:
		return "reloaded"
	}
	return action + "ed"
}
