package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazu/rxcore/vm/stemimage"
)

func newStemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stem",
		Short: "Inspect stem images",
	}

	var limit int
	dump := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the variables stored in a stem image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			img, err := stemimage.ReadFile(args[0])
			if err != nil {
				return err
			}
			return dumpImage(cmd.OutOrStdout(), img, limit)
		},
	}
	dump.Flags().IntVarP(&limit, "limit", "n", 0, "Print at most this many variables (0 for all)")
	cmd.AddCommand(dump)
	return cmd
}

func dumpImage(out io.Writer, img *stemimage.Image, limit int) error {
	if img.HasDefault {
		fmt.Fprintf(out, "%s = %v\n", img.Name, img.Default)
	}
	for i, e := range img.Elements {
		if limit > 0 && i == limit {
			fmt.Fprintf(out, "... %d more\n", len(img.Elements)-limit)
			break
		}
		fmt.Fprintf(out, "%s%s = %v\n", img.Name, e.Tail, e.Value)
	}
	return nil
}
