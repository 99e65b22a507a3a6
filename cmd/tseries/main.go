// Command tseries produces a time series of bytes and packet counts per
// filter from an offline capture, matching packets either against a
// grid-of-tries source/destination prefix index (-N, NETS mode) or a
// sequential list of BPF filter expressions (the default).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Enchufa2/nantools/internal/config"
	"github.com/Enchufa2/nantools/internal/dissect"
	"github.com/Enchufa2/nantools/internal/logging"
	"github.com/Enchufa2/nantools/internal/pcapio"
	"github.com/Enchufa2/nantools/internal/progress"
	"github.com/Enchufa2/nantools/internal/series"
	"github.com/Enchufa2/nantools/internal/triematch"
)

type flags struct {
	input       string
	filterFile  string
	configPath  string
	netsMode    bool
	prefilter   string
	bucketMS    int
	skipZero    bool
	refTsMS     int64
	breakFirst  bool
	snaplen     int
	progressOn  bool
	debug       bool
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "tseries -i capture.pcap -f filters",
		Short: "Bucketize matched traffic into a time series, by trie filter or BPF expression",
		Long: `tseries matches every packet in a capture against a set of filters and
emits one line per filter per completed time interval with the bytes and
packet count each filter saw.

In the default mode, the filter file holds one BPF expression per line,
evaluated in sequence against the raw frame.

In -N (NETS) mode, the filter file holds one "srcIP srcMask dstIP
dstMask" line per filter (all four tokens dotted-quad, masks included),
indexed by a grid of tries: a hit is reported for every filter whose
prefixes both enclose the packet's addresses, including nested filters
that a more specific filter does not shadow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.input == "" {
				return fmt.Errorf("-i file is required")
			}
			if f.filterFile == "" {
				return fmt.Errorf("-f filters is required")
			}
			return run(cmd.Context(), f, cmd.Flags(), cmd.OutOrStdout())
		},
	}
	root.Flags().StringVarP(&f.input, "input", "i", "", "pcap capture file (required)")
	root.Flags().StringVarP(&f.filterFile, "filters", "f", "", "filter file, one filter per line (required)")
	root.Flags().StringVar(&f.configPath, "config", "", "optional YAML config file")
	root.Flags().BoolVarP(&f.netsMode, "nets", "N", false, "filter file holds srcIP srcMask dstIP dstMask lines, matched via the grid of tries")
	root.Flags().StringVarP(&f.prefilter, "prefilter", "p", "", "BPF expression a packet must also match before per-filter matching runs")
	root.Flags().IntVarP(&f.bucketMS, "bucket-ms", "n", 1000, "bucket width in milliseconds")
	root.Flags().BoolVarP(&f.skipZero, "skip-zero", "z", false, "omit buckets with no matching traffic instead of zero-filling")
	root.Flags().Int64VarP(&f.refTsMS, "ref-ts", "t", 0, "reference timestamp in epoch ms buckets align to (0 = first packet's timestamp)")
	root.Flags().BoolVarP(&f.breakFirst, "break-first", "x", false, "BPF mode: stop at the first matching filter instead of testing all of them")
	root.Flags().IntVarP(&f.snaplen, "snaplen", "s", dissect.DefaultFrameCap, "snapshot length BPF expressions are compiled against")
	root.Flags().BoolVarP(&f.progressOn, "progress", "v", false, "report progress to stderr")
	root.Flags().BoolVarP(&f.debug, "debug", "b", false, "enable verbose logging")

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

	r, err := pcapio.Open(f.input)
	if err != nil {
		return err
	}
	defer r.Close()

	lines, err := readFilterLines(f.filterFile)
	if err != nil {
		return fmt.Errorf("read filters: %w", err)
	}

	var matcher series.Matcher
	nFilters := 0
	if f.netsMode {
		filters := make([]triematch.Filter, 0, len(lines))
		for i, line := range lines {
			srcAddr, srcBits, dstAddr, dstBits, err := parseNetLine(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping filter %d (%q): %v\n", i, line, err)
				continue
			}
			filters = append(filters, triematch.Filter{
				ID: len(filters), SrcAddr: srcAddr, SrcMask: srcBits, DstAddr: dstAddr, DstMask: dstBits,
			})
		}
		matcher = series.NetsMatcher{Grid: triematch.NewGrid(filters)}
		nFilters = len(filters)
	} else {
		exprs := make([]string, 0, len(lines))
		for i, line := range lines {
			if _, err := series.NewBPFFilterSet([]string{line}, layers.LinkTypeEthernet, f.snaplen, false); err != nil {
				fmt.Fprintf(os.Stderr, "skipping filter %d (%q): %v\n", i, line, err)
				continue
			}
			exprs = append(exprs, line)
		}
		set, err := series.NewBPFFilterSet(exprs, layers.LinkTypeEthernet, f.snaplen, f.breakFirst)
		if err != nil {
			return err
		}
		matcher = series.BPFMatcher{Set: set}
		nFilters = len(exprs)
	}
	if nFilters == 0 {
		return fmt.Errorf("no usable filters in %s", f.filterFile)
	}

	var pre *series.BPFFilterSet
	if f.prefilter != "" {
		pre, err = series.CompileOne(f.prefilter, layers.LinkTypeEthernet, f.snaplen)
		if err != nil {
			return fmt.Errorf("compile prefilter: %w", err)
		}
	}

	var prog *progress.Reporter
	if f.progressOn {
		prog = progress.New(log, r.Size(), 5*time.Second)
	}

	var engine *series.Engine
	emit := func(row series.Row) {
		ms := row.Start.UnixNano() / int64(time.Millisecond)
		for i := range row.Bytes {
			fmt.Fprintf(out, "%d %d %d %d\n", i, ms, row.Bytes[i], row.Packets[i])
		}
	}

	var pos uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, ci, err := r.Next()
		if err != nil {
			break
		}
		if pre != nil && !pre.MatchAny(data, ci.Length) {
			pos++
			continue
		}
		pkt := dissect.DissectFast(data, ci.CaptureLength, ci.Length, ci.Timestamp, pos, f.snaplen)
		pos++

		if engine == nil {
			ref := ci.Timestamp
			if f.refTsMS > 0 {
				ref = time.Unix(0, f.refTsMS*int64(time.Millisecond))
			}
			engine = series.NewEngine(matcher, ref, time.Duration(f.bucketMS)*time.Millisecond, nFilters, f.skipZero)
		}
		engine.Feed(pkt, emit)

		if prog != nil {
			if n, err := r.BytesRead(); err == nil {
				prog.Report(time.Now(), n)
			}
		}
	}
	if engine != nil {
		engine.Finish(emit)
	}
	return nil
}
