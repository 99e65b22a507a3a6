// Command infodups scans an offline packet capture for duplicate frames,
// using a sliding window of recently seen packets and a set of
// relation-specific comparators to explain *why* two frames are
// duplicates (switched, routed, NATed, proxied, or fragmented variants
// of each), rather than merely flagging byte-identical payloads.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Enchufa2/nantools/internal/config"
	"github.com/Enchufa2/nantools/internal/dedup"
	"github.com/Enchufa2/nantools/internal/dissect"
	"github.com/Enchufa2/nantools/internal/logging"
	"github.com/Enchufa2/nantools/internal/pcapio"
	"github.com/Enchufa2/nantools/internal/progress"
	"github.com/Enchufa2/nantools/internal/stats"
	"github.com/Enchufa2/nantools/internal/workerpool"
)

// pktBytesEstimate is the assumed per-node node/pkt bookkeeping overhead;
// it is added to the frame cap to turn -M memGB into a node count budget.
const pktBytesEstimate = 100

type flags struct {
	input       string
	configPath  string
	fast        bool
	suspicious  bool
	extended    bool
	debug       bool
	workers     int
	maxWindow   int
	frameCap    int
	windowSecs  float64
	windowPos   uint64
	memGB       float64
	disabled    [6]bool
	progressOn  bool
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "infodups -i capture.pcap",
		Short: "Detect and classify duplicate packets in an offline capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.input == "" {
				return fmt.Errorf("-i file is required")
			}
			return run(cmd.Context(), f, cmd.Flags(), cmd.OutOrStdout())
		},
	}
	root.Flags().StringVarP(&f.input, "input", "i", "", "pcap capture file (required)")
	root.Flags().StringVar(&f.configPath, "config", "", "optional YAML config file")
	root.Flags().BoolVarP(&f.fast, "fast", "F", false, "use the reduced single-relation IPv4-only comparator")
	root.Flags().BoolVarP(&f.suspicious, "suspicious", "s", true, "report payload-equal pairs that matched no relation")
	root.Flags().BoolVarP(&f.extended, "extended", "x", false, "append timestamp, TTL, MAC and IP details of the matched packets to each report line")
	root.Flags().BoolVarP(&f.debug, "debug", "b", false, "enable debug-level logging")
	root.Flags().BoolVarP(&f.progressOn, "progress", "v", false, "report progress to stderr")
	root.Flags().IntVarP(&f.workers, "threads", "T", 4, "number of concurrent classifier workers (2..64)")
	root.Flags().IntVar(&f.maxWindow, "max-window", 0, "live-packet count at which the window counts as full (0 = no limit, overridden by -M); ingest does not wait for the window to drain")
	root.Flags().Float64VarP(&f.memGB, "mem-gb", "M", 0, "approximate memory budget in GB, converted to a -max-window count")
	root.Flags().Float64VarP(&f.windowSecs, "time-window", "t", 0, "bound backward scans to this many seconds of packet time (0 = 0.1 s unless -n is given)")
	root.Flags().Uint64VarP(&f.windowPos, "pos-window", "n", 0, "bound backward scans to this many preceding positions instead of by time (0 = off)")
	root.Flags().IntVar(&f.frameCap, "frame-cap", dissect.DefaultFrameCap, "number of captured bytes retained per packet")
	for k := 0; k < 6; k++ {
		root.Flags().BoolVarP(&f.disabled[k], fmt.Sprintf("disable-%d", k), fmt.Sprintf("%d", k), false, fmt.Sprintf("disable relation %d", k))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags, flagSet *pflag.FlagSet, out io.Writer) error {
	log, err := logging.New(f.debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	if _, err := config.Load(f.configPath, flagSet); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if f.workers < 2 || f.workers > 64 {
		return fmt.Errorf("invalid config: -T threads must be in [2,64], got %d", f.workers)
	}

	r, err := pcapio.Open(f.input)
	if err != nil {
		return err
	}
	defer r.Close()

	cfg := dedup.Config{
		Fast:       f.fast,
		Suspicious: f.suspicious,
		MaxWindow:  f.maxWindow,
		Disabled:   f.disabled,
	}
	if f.memGB > 0 {
		cfg.MaxWindow = int(f.memGB * 1e9 / float64(dissect.DefaultFrameCap+pktBytesEstimate))
	}
	switch {
	case f.windowSecs > 0:
		cfg.Mode = dedup.WindowByTime
		cfg.Time = time.Duration(f.windowSecs * float64(time.Second))
	case f.windowPos > 0:
		cfg.Mode = dedup.WindowByPositions
		cfg.Positions = f.windowPos
	default:
		cfg.Mode = dedup.WindowByTime
		cfg.Time = 100 * time.Millisecond
	}

	classifier := dedup.NewClassifier(cfg, f.workers)
	pool := workerpool.New(f.workers, classifier, 256)
	st := &stats.Stats{}

	var prog *progress.Reporter
	if f.progressOn {
		prog = progress.New(log, r.Size(), 5*time.Second)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pool.Run(runCtx) }()

	var readErr error
	go func() {
		defer pool.CloseInput()
		pos := uint64(1)
		dissectFn := dissect.Dissect
		if f.fast {
			dissectFn = dissect.DissectFast
		}
		for {
			select {
			case <-runCtx.Done():
				return
			default:
			}
			data, ci, err := r.Next()
			if err != nil {
				if err != io.EOF {
					readErr = err
				}
				return
			}
			st.AddTotal()
			pkt := dissectFn(data, ci.CaptureLength, ci.Length, ci.Timestamp, pos, f.frameCap)
			if pkt.Malformed {
				st.AddMalformed()
			}
			if pkt.IsIPv4 {
				st.AddIPv4()
				if pkt.IsTCP {
					st.AddTCP()
				} else if pkt.HasPorts {
					st.AddUDP()
				}
			}
			pool.Dispatch(pkt)
			pos++

			if prog != nil {
				if n, err := r.BytesRead(); err == nil {
					prog.Report(time.Now(), n)
				}
			}
		}
	}()

	for res := range workerpool.Multiplex(pool.Outputs()) {
		st.AddSuspicious(int64(res.Record.Suspicious))
		if !res.Found {
			continue
		}
		if res.Record.Type == dedup.RelSuspicious {
			fmt.Fprintln(out, res.Record.Format(f.extended))
			continue
		}
		st.AddDuplicate(int(res.Record.Type))
		fmt.Fprintln(out, res.Record.Format(f.extended))
	}

	if err := <-done; err != nil && err != context.Canceled {
		return err
	}
	if readErr != nil {
		return fmt.Errorf("read %s: %w", f.input, readErr)
	}

	snap := st.Snapshot()
	fields := []zap.Field{
		zap.Int64("total", snap.Total),
		zap.Int64("ipv4", snap.IPv4),
		zap.Int64("tcp", snap.TCP),
		zap.Int64("udp", snap.UDP),
		zap.Int64("malformed", snap.Malformed),
		zap.Int64("duplicates", snap.Duplicates),
		zap.Int64("suspicious", snap.Suspicious),
	}
	for t := dedup.RelSwitching; t <= dedup.RelNATRoutingFrag; t++ {
		fields = append(fields, zap.Int64(t.String(), snap.ByType[t]))
	}
	log.Info("done", fields...)
	return nil
}
