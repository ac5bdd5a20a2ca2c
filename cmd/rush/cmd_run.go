package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/netshaper/rush/pkg/rush/engine"
	"github.com/netshaper/rush/pkg/rush/logging"
	"github.com/netshaper/rush/pkg/rush/metrics"
	"github.com/netshaper/rush/pkg/rush/packet"
	"github.com/netshaper/rush/pkg/rush/synth"
)

const preallocatePackets = 4096

var runCmd = &cobra.Command{
	Use:   "run <outer_ifname> <inner_ifname> <specpath> [ingress_profile] [egress_profile]",
	Short: "Shape traffic flowing between two interfaces according to a QoS spec",
	Long: `Run reshapes traffic flowing between outer_ifname and inner_ifname
according to the QoS spec read from specpath. The spec is re-read and
applied whenever the process receives SIGHUP or the spec file is
rewritten on disk; a failure to read or validate the spec logs a warning
and leaves the previously running configuration in place.`,
	Args: cobra.RangeArgs(3, 5),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("ingress-profile", "", "path to write the ingress flow-top profile to")
	runCmd.Flags().String("egress-profile", "", "path to write the egress flow-top profile to")
	runCmd.Flags().String("metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	runCmd.Flags().String("log-path", "", "JSON-L event log path (events are discarded if empty)")
	runCmd.Flags().Bool("no-report", false, "disable the link/load reports printed on each reload and at shutdown")

	viper.BindPFlag("run.ingress-profile", runCmd.Flags().Lookup("ingress-profile"))
	viper.BindPFlag("run.egress-profile", runCmd.Flags().Lookup("egress-profile"))
	viper.BindPFlag("run.metrics-addr", runCmd.Flags().Lookup("metrics-addr"))
	viper.BindPFlag("run.log-path", runCmd.Flags().Lookup("log-path"))
	viper.BindPFlag("run.no-report", runCmd.Flags().Lookup("no-report"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	outerIfname, innerIfname, specpath := args[0], args[1], args[2]

	ingressProfile := viper.GetString("run.ingress-profile")
	egressProfile := viper.GetString("run.egress-profile")
	if len(args) > 3 {
		ingressProfile = args[3]
	}
	if len(args) > 4 {
		egressProfile = args[4]
	}
	if ingressProfile == "" || egressProfile == "" {
		return fmt.Errorf("ingress/egress profile paths are required (positionally or via --ingress-profile/--egress-profile)")
	}

	metricsAddr := viper.GetString("run.metrics-addr")
	noReport := viper.GetBool("run.no-report")
	logPath := viper.GetString("run.log-path")

	var sinks []logging.Sink
	if logPath != "" {
		sink, err := logging.NewJSONLWriter(logPath)
		if err != nil {
			return wrap(ErrOpenLogFile, err)
		}
		sinks = append(sinks, sink)
	}
	emitter := logging.NewEmitter(logging.EmitterConfig{}, sinks...)
	defer emitter.Close()

	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()

	reloadCh, stopReload, err := watchSpecFile(specpath)
	if err != nil {
		return err
	}
	defer stopReload()
	sighupCh, stopSighup := reloadSignal()
	defer stopSighup()

	packet.Preallocate(preallocatePackets)

	e := engine.New()
	e.SetEmitter(emitter)

	var reg *metrics.Registry
	if metricsAddr != "" {
		promReg := prometheus.NewRegistry()
		reg = metrics.NewRegistry(promReg)
		server := metrics.NewServer(metricsAddr, promReg)
		go func() {
			if err := server.Serve(ctx); err != nil {
				_ = emitter.Emit(logging.EventNICError, wrap(ErrServeMetrics, err).Error(), "", nil, nil)
			}
		}()
	}

	if !applySpec(e, emitter, outerIfname, innerIfname, specpath, ingressProfile, egressProfile, false) {
		return wrap(ErrReadSpec, fmt.Errorf("no usable spec at %s on startup", specpath))
	}

	colors := newReportColors()

	// Run breathes the network until a reload is requested (SIGHUP, a
	// spec-file write, or process shutdown), reports load/links once,
	// then re-reads the spec and runs again — mirroring main()'s
	// configure/engine::main/report_load loop.
	for {
		stop := false
		e.Run(engine.Options{
			NoReport: true,
			Done: func() bool {
				select {
				case <-ctx.Done():
					stop = true
					return true
				case <-sighupCh:
					return true
				case <-reloadCh:
					return true
				default:
					return false
				}
			},
		})
		if reg != nil {
			reg.Collect(e)
		}
		if !noReport {
			e.ReportLoad()
			e.ReportLinks()
			printLinkReport(e, colors)
		}
		if stop || ctx.Err() != nil {
			return nil
		}
		applySpec(e, emitter, outerIfname, innerIfname, specpath, ingressProfile, egressProfile, true)
	}
}

// applySpec reads and validates the spec at specpath and, on success,
// reconfigures e to match it. On failure it emits a warning and leaves e
// running its previous configuration, per the reload contract. Returns
// whether the spec was applied.
func applySpec(e *engine.Engine, emitter *logging.Emitter, outerIfname, innerIfname, specpath, ingressProfile, egressProfile string, isReload bool) bool {
	spec, err := synth.ReadSpecFile(specpath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to read %s (%v)\n", specpath, err)
		_ = emitter.Emit(logging.EventSpecReloadFailed, fmt.Sprintf("failed to read %s: %v", specpath, err), "",
			nil, &logging.SpecReloadFailedData{Path: specpath, Reason: err.Error()})
		return false
	}

	cfg := synth.Build(outerIfname, innerIfname, ingressProfile, egressProfile, spec)
	e.Configure(cfg)

	eventType, summary := logging.EventConfigured, fmt.Sprintf("configured from %s", specpath)
	if isReload {
		eventType, summary = logging.EventSpecReloaded, fmt.Sprintf("reloaded from %s", specpath)
	}
	_ = emitter.Emit(eventType, summary, "", nil, &logging.ConfiguredData{Apps: len(cfg.Apps), Links: len(cfg.Links)})
	return true
}
