package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Runner executes an external tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs binaries from PATH (or absolute paths).
type ExecRunner struct{}

// Run executes name with args, returning ErrToolMissing when the binary
// cannot be found and the tail of stderr when it fails.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrToolMissing, name)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr
	L_trace("media: exec", "tool", name, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, tail(stderr.String(), 300))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// IsToolMissing reports whether err came from a missing binary.
func IsToolMissing(err error) bool {
	return errors.Is(err, ErrToolMissing)
}
