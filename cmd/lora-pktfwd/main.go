// lora-pktfwd forwards LoRa concentrator traffic between a HAL driver
// and a network server, bridging the semtech-style UDP protocol.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agsys/lora-pktfwd/internal/concentrator"
	"github.com/agsys/lora-pktfwd/internal/config"
	"github.com/agsys/lora-pktfwd/internal/forwarder"
	"github.com/agsys/lora-pktfwd/internal/hal"
	"github.com/agsys/lora-pktfwd/internal/hal/concentratord"
	"github.com/agsys/lora-pktfwd/internal/hal/simulator"
	"github.com/agsys/lora-pktfwd/internal/metrics"
	"github.com/agsys/lora-pktfwd/internal/monitor"
	"github.com/agsys/lora-pktfwd/internal/radio"
	"github.com/agsys/lora-pktfwd/internal/stats"
	"github.com/agsys/lora-pktfwd/internal/supervisor"
)

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "lora-pktfwd",
		Short: "LoRa gateway packet forwarder",
		Long:  "Bridges a LoRa concentrator to a network server over the semtech-style UDP protocol.",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the packet forwarder",
		RunE:  runForwarder,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("lora-pktfwd v0.1.0")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/lora-pktfwd/config.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runForwarder(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	runID := uuid.New()
	logger := log.New(os.Stdout, fmt.Sprintf("[%s] ", runID.String()[:8]), log.LstdFlags)

	gwID, err := radio.ParseIdentity(cfg.Gateway.IDHex)
	if err != nil {
		return fmt.Errorf("gateway identity: %w", err)
	}
	filter := radio.FilterPolicy{
		ForwardValidCRC: cfg.Gateway.ForwardCRCValid,
		ForwardBadCRC:   cfg.Gateway.ForwardCRCError,
		ForwardNoCRC:    cfg.Gateway.ForwardCRCDisabled,
	}

	driver, err := buildHAL(cfg)
	if err != nil {
		return fmt.Errorf("HAL driver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := driver.Start(ctx); err != nil {
		return fmt.Errorf("HAL start: %w", err)
	}
	defer driver.Stop()

	arb := concentrator.New(driver)
	logger.Printf("run %s: gateway %s, HAL driver %s", runID, gwID, arb.Version())

	upConn, upDest, err := dialEndpoint(cfg.Gateway.ServerAddress, cfg.Gateway.ServPortUp)
	if err != nil {
		return fmt.Errorf("upstream socket: %w", err)
	}
	defer upConn.Close()

	downConn, downDest, err := dialEndpoint(cfg.Gateway.ServerAddress, cfg.Gateway.ServPortDown)
	if err != nil {
		return fmt.Errorf("downstream socket: %w", err)
	}
	defer downConn.Close()

	reg := stats.NewRegister()
	reporter := stats.NewReporter(reg, cfg.StatIntervalDuration(), logger)

	upCfg := forwarder.DefaultUpstreamConfig()
	upCfg.GatewayID = gwID
	upCfg.Filter = filter
	upCfg.AckTimeout = cfg.AckTimeout()

	downCfg := forwarder.DefaultDownstreamConfig()
	downCfg.GatewayID = gwID
	downCfg.KeepaliveInterval = cfg.KeepaliveIntervalDuration()

	sup := &supervisor.Supervisor{
		Arbiter:    arb,
		Register:   reg,
		Reporter:   reporter,
		Upstream:   forwarder.NewUpstream(upCfg, arb, upConn, upDest, reg, logger),
		Downstream: forwarder.NewDownstream(downCfg, arb, downConn, downDest, reg, logger),
		Logger:     logger,
	}

	if cfg.Metrics.ListenAddr != "" {
		sup.Collector = metrics.NewCollector("lora_pktfwd")
		sup.MetricsAddr = cfg.Metrics.ListenAddr
	}
	if cfg.Monitor.ListenAddr != "" {
		sup.Hub = monitor.NewHub()
		sup.MonitorAddr = cfg.Monitor.ListenAddr
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	select {
	case sig := <-sigChan:
		if sig == syscall.SIGQUIT {
			logger.Printf("received %v, exiting immediately without draining", sig)
			cancel()
			return nil
		}
		logger.Printf("received %v, shutting down", sig)
		cancel()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// buildHAL selects the concentrator driver named by the configuration.
func buildHAL(cfg config.Config) (hal.Concentrator, error) {
	switch cfg.HAL.Driver {
	case "", "simulator":
		return simulator.New(), nil
	case "concentratord":
		ccfg := concentratord.DefaultConfig()
		if cfg.HAL.EventURL != "" {
			ccfg.EventURL = cfg.HAL.EventURL
		}
		if cfg.HAL.CommandURL != "" {
			ccfg.CommandURL = cfg.HAL.CommandURL
		}
		return concentratord.New(ccfg), nil
	default:
		return nil, fmt.Errorf("unknown hal.driver %q", cfg.HAL.Driver)
	}
}

// dialEndpoint resolves host:port and opens a UDP socket bound to an
// ephemeral local port, ready to send to and receive from the server.
func dialEndpoint(host string, port uint16) (net.PacketConn, net.Addr, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, nil, err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, nil, err
	}
	return conn, addr, nil
}
