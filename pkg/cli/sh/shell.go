package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/throttle.go/pkg/throttle"
)

// Shell provides ishell backed interactive bench shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Board *throttle.Board
	// Sim is nil when the board runs on real hardware.
	Sim *throttle.SimHardware
	// Sleep waits between simulated pin changes.
	Sleep func(time.Duration)
}

const (
	shellKey = "$shell"
	prompt   = "throttle > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&StatusCmd,
		&PedalCmd,
		&ModeCmd,
		&SetupCmd,
		&MotorCmd,
		&ECUCmd,
		&MetricsCmd,
	}
)

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds adds more commands to shells created afterwards.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(board *throttle.Board, sim *throttle.SimHardware) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell: ishell.New(),
		Board: board,
		Sim:   sim,
		Sleep: time.Sleep,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeSimulated wraps command func requires simulated hardware.
func MustBeSimulated(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Sim == nil {
			c.Err(fmt.Errorf("not on simulated hardware"))
			return
		}
		fn(c)
	}
}

// Print prints v as JSON when OutputJSON is set, otherwise text is
// printed.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Print(text)
}

// Run runs the shell. With args, they are evaluated as a single command.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if s.Interactive {
		s.Shell.Run()
		return nil
	}
	return fmt.Errorf("command expected")
}

// Close stops the interactive shell.
func (s *Shell) Close() {
	s.Shell.Close()
}

// waitCycles gives the executor time to observe a pin change.
func (s *Shell) waitCycles(n int) {
	s.Sleep(time.Duration(n) * s.Board.Executor.Interval)
}
