package registry

import (
	"io"
	"os"
	"sync"
)

// Handle is the live association between a server ID and its OS process.
// Writes to stdin are serialized; exit is observed through Done.
type Handle struct {
	ServerID string
	Process  *os.Process

	stdin      io.WriteCloser
	stdinMutex sync.Mutex
	stdinOpen  bool

	done     chan struct{}
	exitOnce sync.Once
	exitCode int
}

func NewHandle(serverID string, proc *os.Process, stdin io.WriteCloser) *Handle {
	return &Handle{
		ServerID:  serverID,
		Process:   proc,
		stdin:     stdin,
		stdinOpen: stdin != nil,
		done:      make(chan struct{}),
		exitCode:  -1,
	}
}

// PID returns the OS process identifier
func (h *Handle) PID() int {
	return h.Process.Pid
}

// Writable reports whether stdin can still accept input
func (h *Handle) Writable() bool {
	h.stdinMutex.Lock()
	defer h.stdinMutex.Unlock()
	return h.stdinOpen
}

// WriteLine writes line followed by a newline as a single write. It returns
// io.ErrClosedPipe once stdin has been closed.
func (h *Handle) WriteLine(line string) error {
	h.stdinMutex.Lock()
	defer h.stdinMutex.Unlock()

	if !h.stdinOpen {
		return io.ErrClosedPipe
	}
	_, err := io.WriteString(h.stdin, line+"\n")
	return err
}

// CloseStdin closes stdin once; later calls are no-ops
func (h *Handle) CloseStdin() {
	h.stdinMutex.Lock()
	defer h.stdinMutex.Unlock()

	if !h.stdinOpen {
		return
	}
	h.stdinOpen = false
	_ = h.stdin.Close()
}

// MarkExited records the exit code and releases everything waiting on Done.
// Only the first call has an effect.
func (h *Handle) MarkExited(exitCode int) {
	h.exitOnce.Do(func() {
		h.exitCode = exitCode
		h.CloseStdin()
		close(h.done)
	})
}

// Done is closed when the process has been reaped
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has been reaped
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode is -1 until the process has been reaped, or when it was killed by
// a signal
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}
