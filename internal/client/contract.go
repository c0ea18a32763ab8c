package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/high001/webpanel/internal/models"
)

// Mutation operations understood by Mutate
const (
	OpKill     = "kill"
	OpCreate   = "create"
	OpDelete   = "delete"
	OpPassword = "password"
	OpUpload   = "upload"
	OpExecute  = "execute"
)

// Fetch parameter names
const (
	ParamPath  = "path"
	ParamFile  = "file"
	ParamLines = "lines"
)

// UploadPayload is the Mutate payload for OpUpload; the target is the
// remote directory.
type UploadPayload struct {
	Filename string
	Content  io.Reader
}

// MutationResult is what a successful Mutate returns
type MutationResult struct {
	Message string
	// Command is set for OpExecute
	Command *models.CommandResult
}

// Fetch reads one snapshot of resource. The concrete snapshot types are
// *models.DashboardStats, []models.ProcessInfo, []models.ServiceInfo,
// *models.FileListing, []models.LogFile, *models.LogTail and
// []models.UserAccount.
func (c *Client) Fetch(ctx context.Context, resource models.Resource, params url.Values) (any, error) {
	switch resource {
	case models.ResourceMetrics:
		return c.DashboardStats(ctx)
	case models.ResourceProcesses:
		return c.Processes(ctx)
	case models.ResourceServices:
		return c.Services(ctx)
	case models.ResourceFiles:
		return c.ListFiles(ctx, params.Get(ParamPath))
	case models.ResourceLogFiles:
		return c.LogFiles(ctx)
	case models.ResourceLogs:
		lines, _ := strconv.Atoi(params.Get(ParamLines))
		return c.TailLog(ctx, params.Get(ParamFile), lines)
	case models.ResourceUsers:
		return c.Users(ctx)
	}
	return nil, &Error{Kind: KindValidation, Op: "fetch " + resource.String(), Message: "unsupported resource"}
}

// Mutate applies op to target within resource. The payload type depends on
// the operation: models.CreateUserRequest for user creation,
// models.PasswordRequest for password changes, UploadPayload for uploads;
// other operations take none.
func (c *Client) Mutate(ctx context.Context, resource models.Resource, target, op string, payload any) (*MutationResult, error) {
	opName := fmt.Sprintf("mutate %s/%s", resource, op)
	invalid := func(msg string) error {
		return &Error{Kind: KindValidation, Op: opName, Message: msg}
	}

	var (
		msg string
		err error
	)
	switch resource {
	case models.ResourceProcesses:
		if op != OpKill {
			return nil, invalid("unsupported operation")
		}
		pid, perr := strconv.ParseInt(target, 10, 32)
		if perr != nil || pid <= 0 {
			return nil, invalid("invalid pid " + strconv.Quote(target))
		}
		msg, err = c.KillProcess(ctx, int32(pid))

	case models.ResourceServices:
		msg, err = c.ServiceAction(ctx, target, op)

	case models.ResourceUsers:
		switch op {
		case OpCreate:
			req, ok := payload.(models.CreateUserRequest)
			if !ok {
				return nil, invalid("missing user details")
			}
			msg, err = c.CreateUser(ctx, req.Username, req.Password)
		case OpDelete:
			msg, err = c.DeleteUser(ctx, target)
		case OpPassword:
			req, ok := payload.(models.PasswordRequest)
			if !ok {
				return nil, invalid("missing password")
			}
			msg, err = c.ChangePassword(ctx, target, req.Password)
		default:
			return nil, invalid("unsupported operation")
		}

	case models.ResourceFiles:
		up, ok := payload.(UploadPayload)
		if op != OpUpload || !ok {
			return nil, invalid("unsupported operation")
		}
		msg, err = c.Upload(ctx, target, up.Filename, up.Content)

	case models.ResourceCommand:
		if op != OpExecute {
			return nil, invalid("unsupported operation")
		}
		res, cerr := c.Execute(ctx, target)
		if cerr != nil {
			return nil, cerr
		}
		return &MutationResult{Message: "Command executed", Command: res}, nil

	default:
		return nil, invalid("unsupported resource")
	}

	if err != nil {
		return nil, err
	}
	return &MutationResult{Message: msg}, nil
}
