package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

var errEmptyCommand = errors.New("empty command")

// Run executes cmdString and returns its trimmed stdout.
// On failure the error carries stderr.
func Run(ctx context.Context, cmdString string) (string, error) {
	args, err := shlex.Split(cmdString)
	if err != nil {
		return "", fmt.Errorf("invalid command %q: %w", cmdString, err)
	}
	if len(args) == 0 {
		return "", errEmptyCommand
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	// If Env is nil, the new process uses the current process's environment.
	cmd.Env = os.Environ()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stout bytes.Buffer
	cmd.Stdout = &stout

	if err = cmd.Run(); err != nil {
		return "", fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSuffix(stout.String(), "\n"), nil
}
