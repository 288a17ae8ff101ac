package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tcfw/kernel/services/go/netif/config"
	"github.com/tcfw/kernel/services/go/netif/sim"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "netsim",
		Short:        "Simulate ARP resolving interfaces on a shared ethernet segment",
		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCmd())

	return cmd
}

type runFlags struct {
	config string
	pcap   string
	quiet  bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "Simulation config file (required)")
	fs.StringVar(&f.pcap, "pcap", "", "Write every transmitted frame to this pcap file")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Suppress interface logging")
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a traffic schedule",
		Example: `  netsim run --config sim.yaml --pcap out.pcap`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.config == "" {
				return errors.New("--config is required")
			}

			return runSim(flags, cmd.OutOrStdout())
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

func runSim(flags *runFlags, out io.Writer) error {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if flags.quiet {
		logger.SetOutput(io.Discard)
	}

	opts := sim.Options{Logger: logger}

	if flags.pcap != "" {
		f, err := os.Create(flags.pcap)
		if err != nil {
			return errors.Wrap(err, "creating pcap file")
		}
		defer f.Close()

		opts.Capture = f
	}

	res, err := sim.Run(cfg, opts)
	if err != nil {
		return err
	}

	for _, d := range res.Deliveries {
		fmt.Fprintf(out, "%8s %-8s %s -> %s port %d: %q\n", d.At, d.Host, d.Src, d.Dst, d.Port, d.Payload)
	}

	names := make([]string, 0, len(res.Stats))
	for name := range res.Stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "\n%d frames in %s\n", res.Frames, res.Elapsed)
	for _, name := range names {
		s := res.Stats[name]
		fmt.Fprintf(out, "%-8s tx %d drop %d err %d | rx %d drop %d err %d | arp req %d rep %d | evicted %d\n",
			name, s.TXPackets, s.TXDrop, s.TXErr, s.RXPackets, s.RXDrop, s.RXErr, s.ARPRequests, s.ARPReplies, s.NeighbourEvictions)

		for _, n := range res.Neighbours[name] {
			fmt.Fprintf(out, "         %-15s %-17s %-10s %s\n", n.IP, n.MAC, n.State, n.Age)
		}
	}

	return nil
}
