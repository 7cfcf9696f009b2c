// Package hooks runs operator-configured shell commands when dashboard
// events are published.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Default and max timeout for hook commands.
const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 300 * time.Second
)

// waitDelay bounds how long a timed-out command's leftover children may
// keep its output open.
const waitDelay = time.Second

// maxOutput caps the captured stdout and stderr of one command.
const maxOutput = 8 << 10

// Result describes one hook run.
type Result struct {
	Hook      string
	Output    string
	ExitCode  int
	Duration  time.Duration
	// Truncated is set when the command wrote more than the capture limit.
	Truncated bool
	Err       error
}

// cappedBuffer keeps the first maxOutput bytes written to it and discards
// the rest without failing the writer.
type cappedBuffer struct {
	buf       bytes.Buffer
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := maxOutput - b.buf.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

// Execute runs command through "sh -c" with stdin as its input and env
// added to the process environment. The timeout is clamped to
// (0, MaxTimeout]; zero selects DefaultTimeout. Output is stdout, or stderr
// when stdout is empty.
func Execute(ctx context.Context, command string, timeoutSec int, env map[string]string, stdin []byte) Result {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timeout = min(timeout, MaxTimeout)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command) //nolint:gosec // commands come from the operator's hooks file
	var stdout, stderr cappedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = bytes.NewReader(stdin)
	// Killing sh leaves its children holding the output pipes; stop waiting
	// for them shortly after the deadline.
	cmd.WaitDelay = waitDelay
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start), Err: err}

	out := &stdout
	if strings.TrimSpace(stdout.buf.String()) == "" {
		out = &stderr
	}
	res.Output = strings.TrimSpace(out.buf.String())
	res.Truncated = out.truncated

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -1
	}
	return res
}
