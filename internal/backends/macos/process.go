package macos

import (
	"context"

	"github.com/shirou/gopsutil/process"
)

// runningProcess is the part of a process the shutdown logic needs
type runningProcess interface {
	PID() int32
	Exe(ctx context.Context) (string, error)
	Terminate(ctx context.Context) error
}

type psProcess struct {
	p *process.Process
}

func (p psProcess) PID() int32 {
	return p.p.Pid
}

func (p psProcess) Exe(ctx context.Context) (string, error) {
	return p.p.ExeWithContext(ctx)
}

func (p psProcess) Terminate(ctx context.Context) error {
	return p.p.TerminateWithContext(ctx)
}

// listProcesses returns every process visible to the current user
func listProcesses(ctx context.Context) ([]runningProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]runningProcess, 0, len(procs))
	for _, p := range procs {
		out = append(out, psProcess{p: p})
	}
	return out, nil
}
