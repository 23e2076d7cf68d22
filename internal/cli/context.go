package cli

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"ctxprobe/internal/common/fsutil"
	"ctxprobe/internal/probe"
	"ctxprobe/internal/statusapi"
	"ctxprobe/internal/store"
	"ctxprobe/internal/usage"
)

const gib = 1 << 30

func buildProbeCmd(a *app) *cobra.Command {
	var (
		flagModel       string
		flagOutput      string
		flagMaxVRAM     float64
		flagGranularity int
		flagStatusAddr  string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe models for the largest context window fully resident in VRAM",
		Example: "  ctxprobe context probe\n" +
			"  ctxprobe context probe --model llama3.1:8b-instruct-q4_K_M\n" +
			"  ctxprobe context probe --max-vram 20 --status-addr :8090",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := a.client()
			version := client.Version(ctx)
			a.log.Info().Str("service_version", version).Msg("probing maximum context sizes")

			var (
				st  *store.Store
				err error
			)
			if flagOutput != "" {
				out, perr := fsutil.ExpandHome(flagOutput)
				if perr != nil {
					return perr
				}
				st, err = store.OpenPath(out, a.log)
			} else {
				st, err = store.Open(a.cfg.DataDir, version, a.log)
			}
			if err != nil {
				return err
			}

			opts := probe.SweepOptions{
				Model:        flagModel,
				Granularity:  granularityOr(flagGranularity, a.cfg.Granularity),
				CeilingBytes: int64(flagMaxVRAM * gib),
			}
			orch := probe.NewOrchestrator(client, st, opts, a.log)
			models, err := orch.Candidates(ctx, opts)
			if err != nil {
				return err
			}

			tracker := probe.NewTracker(version, len(models))
			opts.Observer = probe.MultiObserver(tracker, statusapi.Collector{})
			orch = probe.NewOrchestrator(client, st, opts, a.log)

			if addr := firstNonEmpty(flagStatusAddr, a.cfg.StatusAddr); addr != "" {
				mux := statusapi.NewMux(tracker, statusapi.Options{
					CORSEnabled: a.cfg.CORSEnabled,
					CORSOrigins: a.cfg.CORSOrigins,
				}, a.log)
				go statusapi.Serve(ctx, addr, mux, a.log)
			}

			if err := orch.SweepModels(ctx, opts, models); err != nil {
				return err
			}
			a.log.Info().Str("output", st.Path()).Int("rows", st.Len()).Msg("probe sweep complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "probe only this model, re-probing it if already recorded")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "result file path (default <data-dir>/max_context_<version>.csv)")
	cmd.Flags().Float64VarP(&flagMaxVRAM, "max-vram", "v", 0, "VRAM ceiling in GiB a fitting size may occupy (0 = none)")
	cmd.Flags().IntVarP(&flagGranularity, "granularity", "g", 0, "largest unresolved interval left by the search (default 1, exact)")
	cmd.Flags().StringVar(&flagStatusAddr, "status-addr", "", "serve read-only status API on this address during the sweep")
	return cmd
}

func buildUsageCmd(a *app) *cobra.Command {
	var (
		flagModel  string
		flagOutput string
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Measure memory use at power-of-two context sizes",
		Example: "  ctxprobe context usage\n" +
			"  ctxprobe context usage --model qwen3:8b-fp16 -o usage.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := flagOutput
			if path == "" {
				path = filepath.Join(a.cfg.DataDir, "context_usage.csv")
			}
			rep, err := usage.Open(path, a.log)
			if err != nil {
				return err
			}
			if err := usage.Run(ctx, a.client(), rep, flagModel, a.log); err != nil {
				return err
			}
			a.log.Info().Str("output", rep.Path()).Int("rows", rep.Len()).Msg("usage report complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "measure only this model")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "usage file path (default <data-dir>/context_usage.csv)")
	return cmd
}

func granularityOr(flag, cfg int) int {
	if flag > 0 {
		return flag
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
