package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robotalks/throttle.go/pkg/cli/sh"
	"github.com/robotalks/throttle.go/pkg/framework"
	"github.com/robotalks/throttle.go/pkg/throttle"
)

//go-build: CGO_ENABLED=0

func init() {
	throttle.SetupFlags()
	sh.SetupFlags()
}

func run(cmd *cobra.Command, args []string) error {
	conf, err := throttle.Load()
	if err != nil {
		return err
	}
	sim := throttle.NewSimHardware(conf)
	hw := sim.Hardware()
	if conf.ECU.Enabled() {
		if hw.Link, err = conf.ECU.Open(); err != nil {
			return err
		}
	}
	board, err := throttle.NewBoard(conf, hw)
	if err != nil {
		return err
	}
	shell := sh.New(board, sim)
	runner := framework.NewRunner().HandleSignals()
	runner.Go(board, framework.NamedRun("shell", framework.RunnableFunc(func(ctx context.Context) error {
		return framework.RunWithContextCancel(ctx, shell.Close, func() error {
			return shell.Run(args...)
		})
	})))
	return runner.Wait()
}

func main() {
	cmd := &cobra.Command{
		Use:   "throttlesim [COMMAND ARGS...]",
		Short: "Throttle controller on simulated hardware with a bench shell",
		PersistentPreRun: func(*cobra.Command, []string) {
			// glog reads its flags from the standard flag set.
			flag.CommandLine.Parse(nil)
		},
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().AddGoFlagSet(flag.CommandLine)
	err := cmd.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
