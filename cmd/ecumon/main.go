package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/robotalks/throttle.go/pkg/ecu"
	"github.com/robotalks/throttle.go/pkg/ecu/ecusim"
	"github.com/robotalks/throttle.go/pkg/ecu/transport"
	"github.com/robotalks/throttle.go/pkg/framework"
	"github.com/robotalks/throttle.go/pkg/metrics"
	"github.com/robotalks/throttle.go/pkg/throttle"
)

//go-build: CGO_ENABLED=0

var (
	pollInterval = 200 * time.Millisecond
	table        = uint8(ecu.TableEngine)
	listenAddr   = "localhost:8910"
)

func init() {
	throttle.SetupFlags()
}

func watch(cmd *cobra.Command, args []string) error {
	conf, err := throttle.Load()
	if err != nil {
		return err
	}
	link, err := conf.ECU.Open()
	if err != nil {
		return err
	}

	m := metrics.New()
	conn := ecu.NewKLine(link.Transport)
	conn.Waker = link.Waker
	conn.Echo = conf.ECU.Echo
	conn.SettleDelay = conf.ECU.SettleDelay
	conn.ResponseTimeout = conf.ECU.ResponseTimeout
	conn.Metrics = m.Link
	session := ecu.NewHondaECU(conn, ecu.EngineDataFunc(func(d ecu.EngineData) {
		fmt.Printf("%s rpm=%d tps=%.1f%% ect=%dC iat=%dC map=%dkPa batt=%.1fV speed=%d\n",
			time.Now().Format("15:04:05.000"), d.RPM, d.TPSPercent, d.ECTCelsius,
			d.IATCelsius, d.MAPKPa, d.Battery, d.SpeedKPH)
	}))
	session.Table = table

	exec := framework.NewExecutor()
	exec.Interval = pollInterval
	exec.Metrics = m.Executor
	exec.AddNode(session)

	err = framework.NewRunner().HandleSignals().Go(exec).Wait()
	if cerr := link.Close(); cerr != nil {
		glog.Warningf("close link: %v", cerr)
	}
	if dumpErr := m.Dump(os.Stderr); dumpErr != nil {
		glog.Warningf("dump metrics: %v", dumpErr)
	}
	return err
}

func listPorts(cmd *cobra.Command, args []string) error {
	ports, err := transport.ListSerialPorts()
	if err != nil {
		return err
	}
	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}

func serveSim(cmd *cobra.Command, args []string) error {
	sim := ecusim.New()
	mux := http.NewServeMux()
	mux.Handle("/ecu", sim.Handler())
	server := &http.Server{Addr: listenAddr, Handler: mux}
	glog.Infof("simulated ECU on ws://%s/ecu", listenAddr)
	return framework.NewRunner().HandleSignals().Go(
		framework.NamedRun("sim-server", framework.RunnableFunc(func(ctx context.Context) error {
			return framework.RunWithContextCancel(ctx, func() { server.Close() }, server.ListenAndServe)
		}))).Wait()
}

func main() {
	root := &cobra.Command{
		Use:   "ecumon",
		Short: "Honda ECU monitor over the K-line diagnostic link",
		PersistentPreRun: func(*cobra.Command, []string) {
			flag.CommandLine.Parse(nil)
		},
		RunE:          watch,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.Flags().DurationVar(&pollInterval, "poll", pollInterval, "Table poll interval.")
	root.Flags().Uint8Var(&table, "table", table, "Table to read, must decode as engine data.")

	ports := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE:  listPorts,
	}
	sim := &cobra.Command{
		Use:   "sim",
		Short: "Serve a simulated ECU over websocket",
		Args:  cobra.NoArgs,
		RunE:  serveSim,
	}
	sim.Flags().StringVar(&listenAddr, "listen", listenAddr, "Listen address.")
	root.AddCommand(ports, sim)

	err := root.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
