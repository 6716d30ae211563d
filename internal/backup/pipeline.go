package backup

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// Stage describes one command in an external-process pipeline, e.g. the
// mysqldump or gzip half of "mysqldump | gzip > dump.sql.gz".
type Stage struct {
	Name string
	Path string
	Args []string
	Env  []string
}

const stderrTailLimit = 4096

// tailWriter keeps the last stderrTailLimit bytes written. Child stderr is
// always consumed so the process can never block on a full pipe buffer, but
// only the tail is kept for the failure message.
type tailWriter struct {
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if len(w.buf) > stderrTailLimit {
		w.buf = w.buf[len(w.buf)-stderrTailLimit:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string { return string(w.buf) }

// runPipeline runs the stages with each stage's stdout connected to the next
// stage's stdin. When dest is non-nil the final stage's stdout is streamed
// into it. A timeout of zero means no deadline. On timeout the whole process
// group of each stage is killed.
func runPipeline(ctx context.Context, timeout time.Duration, dest io.Writer, stages ...Stage) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmds := make([]*exec.Cmd, len(stages))
	tails := make([]*tailWriter, len(stages))

	for i, st := range stages {
		cmd := exec.CommandContext(ctx, st.Path, st.Args...)
		if len(st.Env) > 0 {
			cmd.Env = append(cmd.Environ(), st.Env...)
		}
		tails[i] = &tailWriter{}
		cmd.Stderr = tails[i]

		// Run each stage in its own process group so cancellation can
		// take down children the tool itself may have spawned.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Cancel = func() error {
			if cmd.Process == nil {
				return nil
			}
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		cmd.WaitDelay = 10 * time.Second

		if i > 0 {
			stdout, err := cmds[i-1].StdoutPipe()
			if err != nil {
				return &SpawnError{Tool: stages[i-1].Name, Err: err}
			}
			cmd.Stdin = stdout
		}
		cmds[i] = cmd
	}

	if dest != nil {
		cmds[len(cmds)-1].Stdout = dest
	} else {
		cmds[len(cmds)-1].Stdout = io.Discard
	}

	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			for _, started := range cmds[:i] {
				if started.Process != nil {
					_ = syscall.Kill(-started.Process.Pid, syscall.SIGKILL)
					_ = started.Wait()
				}
			}
			return &SpawnError{Tool: stages[i].Name, Err: err}
		}
	}

	// Wait downstream-first so upstream pipes stay readable until their
	// consumer has exited.
	waitErrs := make([]error, len(cmds))
	for i := len(cmds) - 1; i >= 0; i-- {
		waitErrs[i] = cmds[i].Wait()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Tool: stages[0].Name, Timeout: timeout}
	}

	for i, err := range waitErrs {
		if err == nil {
			continue
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{
				Tool:     stages[i].Name,
				ExitCode: exitErr.ExitCode(),
				Stderr:   tails[i].String(),
			}
		}
		return &SpawnError{Tool: stages[i].Name, Err: err}
	}

	return nil
}
