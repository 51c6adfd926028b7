package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sarchlab/memhier/datarecording"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var filter datarecording.AccessFilter

	cmd := &cobra.Command{
		Use:   "show <record.sqlite3>",
		Short: "Print a run recorded with run --record",
		Long: `Show prints the run properties, a latency summary per access ` +
			`kind, the final cache statistics, and a page of the recorded ` +
			`accesses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.OpenRecord(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			return show(cmd, reader, filter)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Kind, "kind", "",
		"only list accesses of this kind (Fetch, Load or Store)")
	flags.Uint64Var(&filter.MinLatency, "min-latency", 0,
		"only list accesses that took at least this many cycles")
	flags.BoolVar(&filter.FaultsOnly, "faults", false,
		"only list accesses that faulted")
	flags.BoolVar(&filter.SlowestFirst, "slowest", false,
		"list the slowest accesses first")
	flags.IntVar(&filter.Limit, "limit", 20,
		"number of accesses to list, 0 lists all")
	flags.IntVar(&filter.Offset, "offset", 0,
		"number of accesses to skip")

	return cmd
}

func show(
	cmd *cobra.Command,
	reader *datarecording.RecordReader,
	filter datarecording.AccessFilter,
) error {
	ctx := cmd.Context()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	info, err := reader.ExecInfo(ctx)
	if err != nil {
		return err
	}

	for _, i := range info {
		fmt.Fprintf(tw, "%s\t%s\n", i.Property, i.Value)
	}

	summary, err := reader.Summarize(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "kind\tcount\tfaults\tavg latency\tmax latency")
	for _, s := range summary {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%d\n",
			s.Kind, s.Count, s.Faults, s.AvgLatency, s.MaxLatency)
	}

	stats, err := reader.CacheStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "cache\thits\tmisses\tcoalesced\trejected\t"+
		"evictions\twritebacks\tfaults\thit rate")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.4f\n",
			s.Name, s.Hits, s.Misses, s.Coalesced, s.Rejected,
			s.Evictions, s.Writebacks, s.Faults, s.HitRate)
	}

	if err := writeAccesses(ctx, tw, reader, filter); err != nil {
		return err
	}

	return tw.Flush()
}

func writeAccesses(
	ctx context.Context,
	w io.Writer,
	reader *datarecording.RecordReader,
	filter datarecording.AccessFilter,
) error {
	entries, total, err := reader.Accesses(ctx, filter)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "accesses %d-%d of %d\n",
		min(filter.Offset+1, total), min(filter.Offset+len(entries), total),
		total)
	fmt.Fprintln(w, "id\tkind\taddress\tsize\tissue\tcomplete\tlatency\tfault")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t0x%x\t%d\t%d\t%d\t%d\t%s\n",
			e.ID, e.Kind, e.Address, e.ByteSize, e.IssueCycle,
			e.CompleteCycle, e.Latency, e.Fault)
	}

	return nil
}
