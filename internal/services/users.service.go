package services

import (
	"bufio"
	"context"
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/high001/webpanel/internal/models"
)

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidUsername = errors.New("invalid username")
	ErrPasswordMissing = errors.New("password required")
	ErrInvalidPassword = errors.New("password must be a single line")
)

var usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// UserService manages local accounts with the shadow-utils commands
type UserService struct {
	passwdFile string
	runner     Runner
	timeout    time.Duration
}

func NewUserService(runner Runner) *UserService {
	return &UserService{passwdFile: "/etc/passwd", runner: runner, timeout: 10 * time.Second}
}

// WithPasswdFile reads accounts from path instead of /etc/passwd
func (us *UserService) WithPasswdFile(path string) *UserService {
	us.passwdFile = path
	return us
}

// List parses the passwd database. Malformed lines are skipped.
func (us *UserService) List() ([]models.UserAccount, error) {
	f, err := os.Open(us.passwdFile)
	if err != nil {
		return nil, classifyFSError(err, ErrPathNotFound)
	}
	defer f.Close()

	users := make([]models.UserAccount, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 {
			continue
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		gid, err := strconv.Atoi(fields[3])
		if err != nil {
			continue
		}
		users = append(users, models.UserAccount{
			Username: fields[0],
			UID:      uid,
			GID:      gid,
			Home:     fields[5],
			Shell:    fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (us *UserService) exists(username string) (bool, error) {
	users, err := us.List()
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// Create adds a user with a home directory and bash shell, then sets its password
func (us *UserService) Create(ctx context.Context, username, password string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if err := checkPassword(password); err != nil {
		return err
	}
	exists, err := us.exists(username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}

	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()
	if _, err := runChecked(ctx, us.runner, "", "useradd", "-m", "-s", "/bin/bash", username); err != nil {
		return err
	}
	_, err = runChecked(ctx, us.runner, username+":"+password+"\n", "chpasswd")
	return err
}

// Delete removes the user and its home directory
func (us *UserService) Delete(ctx context.Context, username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	exists, err := us.exists(username)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()
	_, err = runChecked(ctx, us.runner, "", "userdel", "-r", username)
	return err
}

// SetPassword replaces the user's password
func (us *UserService) SetPassword(ctx context.Context, username, password string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if err := checkPassword(password); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, us.timeout)
	defer cancel()
	_, err := runChecked(ctx, us.runner, username+":"+password+"\n", "chpasswd")
	return err
}

func checkPassword(password string) error {
	if password == "" {
		return ErrPasswordMissing
	}
	if strings.ContainsAny(password, "\n\r") {
		return ErrInvalidPassword
	}
	return nil
}
