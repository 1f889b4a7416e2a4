package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chazu/rxcore/memory"
	"github.com/chazu/rxcore/vm"
	"github.com/chazu/rxcore/vm/stemimage"
)

type stressOptions struct {
	segments int
	large    int
	tails    int
	depth    int
	saveStem string
}

func newStressCommand() *cobra.Command {
	var opts stressOptions
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run an allocation workload and report statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := c.NewAllocator()
			if err != nil {
				return err
			}
			defer a.Close()
			return runStress(cmd.OutOrStdout(), a, vm.NewActivity(c.Stack.Capacity), opts)
		},
	}
	cmd.Flags().IntVar(&opts.segments, "segments", 256, "Small segments to reserve")
	cmd.Flags().IntVar(&opts.large, "large", 16, "Large segments to reserve")
	cmd.Flags().IntVar(&opts.tails, "tails", 10000, "Compound tails to assign")
	cmd.Flags().IntVar(&opts.depth, "depth", 500, "Nested activation depth")
	cmd.Flags().StringVar(&opts.saveStem, "save-stem", "", "Write the generated stem image to this file")
	return cmd
}

func runStress(out io.Writer, a *memory.Allocator, act *vm.Activity, opts stressOptions) error {
	for i := 0; i < opts.segments; i++ {
		if _, err := a.ReserveSegment(uintptr(1024 * (i%32 + 1))); err != nil {
			return err
		}
	}
	for i := 0; i < opts.large; i++ {
		if _, err := a.ReserveLargeSegment(uintptr(256 * 1024 * (i%4 + 1))); err != nil {
			return err
		}
	}
	if err := a.Validate(); err != nil {
		return err
	}

	stem := vm.NewStem("DATA")
	for i := 0; i < opts.tails; i++ {
		stem.Set(vm.NewTail(strconv.Itoa(i%100), strconv.Itoa(i)), strconv.Itoa(i*i))
	}
	if err := stem.Table().Validate(); err != nil {
		return err
	}

	maxUsed := 0
	var recurse func(level int) error
	recurse = func(level int) error {
		if level == opts.depth {
			maxUsed = act.Stack().Used()
			return nil
		}
		return act.Call(level%40+1, func(f vm.Frame) error {
			f.Slots[0] = stem.Get(strconv.Itoa(level))
			return recurse(level + 1)
		})
	}
	if err := recurse(0); err != nil {
		return err
	}

	st := a.Stats()
	s := act.Stack()
	fmt.Fprintf(out, "allocator\n")
	fmt.Fprintf(out, "  pools:          %d (%d chain growths)\n", st.Pools, st.ChainGrowths)
	fmt.Fprintf(out, "  reserved:       %s\n", humanize.IBytes(uint64(st.Reserved)))
	fmt.Fprintf(out, "  uncommitted:    %s\n", humanize.IBytes(uint64(st.Uncommitted)))
	fmt.Fprintf(out, "  small segments: %d (%s, %d from spares)\n", st.SmallSegments, humanize.IBytes(uint64(st.SmallBytes)), st.SpareHits)
	fmt.Fprintf(out, "  large segments: %d (%s)\n", st.LargeSegments, humanize.IBytes(uint64(st.LargeBytes)))
	fmt.Fprintf(out, "compound table\n")
	fmt.Fprintf(out, "  tails:          %s\n", humanize.Comma(int64(stem.Items())))
	fmt.Fprintf(out, "  height:         %d\n", stem.Table().Height())
	fmt.Fprintf(out, "activation stack (activity %s)\n", act.ID())
	fmt.Fprintf(out, "  peak slots:     %s\n", humanize.Comma(int64(maxUsed)))
	fmt.Fprintf(out, "  buffers made:   %d\n", s.Allocated())
	fmt.Fprintf(out, "  live slots:     %d\n", s.Used())

	if opts.saveStem != "" {
		if err := stemimage.WriteFile(opts.saveStem, stem); err != nil {
			return err
		}
		fmt.Fprintf(out, "stem image written to %s\n", opts.saveStem)
	}
	return nil
}
