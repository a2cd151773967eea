package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/loopkit/loopkit/internal/cmdexec"
)

// Call records a single command invocation.
type Call struct {
	Name string
	Args []string
}

// Runner is a scripted cmdexec.Runner for unit tests. Responses are consumed
// per command name in FIFO order; commands without a scripted response get
// the zero Result.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []Call
}

// Response is a single scripted outcome.
type Response struct {
	Result cmdexec.Result
	Err    error
}

func NewRunner() *Runner {
	return &Runner{responses: make(map[string][]Response)}
}

// Respond queues a scripted outcome for the named command.
func (r *Runner) Respond(name string, res cmdexec.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[name] = append(r.responses[name], Response{Result: res, Err: err})
}

// RespondExit queues an outcome that merely carries an exit code.
func (r *Runner) RespondExit(name string, exitCode int) {
	r.Respond(name, cmdexec.Result{ExitCode: exitCode}, nil)
}

// Fail queues an outcome where the command cannot be started at all.
func (r *Runner) Fail(name string, msg string) {
	r.Respond(name, cmdexec.Result{}, fmt.Errorf("mock: %s", msg))
}

func (r *Runner) Run(_ context.Context, name string, args ...string) (cmdexec.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Name: name, Args: args})
	queue := r.responses[name]
	if len(queue) == 0 {
		return cmdexec.Result{}, nil
	}
	next := queue[0]
	r.responses[name] = queue[1:]
	return next.Result, next.Err
}

// Calls returns every recorded invocation in order.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallNames returns just the command names, for order assertions.
func (r *Runner) CallNames() []string {
	calls := r.Calls()
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	return names
}
