package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/apmatch/seed"
)

var seedFlags struct {
	invoices int
	pos      int
	seed     int64
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load synthetic invoices and purchase orders into the store",
	RunE:  runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedFlags.invoices, "invoices", 50, "Number of invoices to generate")
	f.IntVar(&seedFlags.pos, "pos", 50, "Number of purchase orders to generate")
	f.Int64Var(&seedFlags.seed, "rand-seed", 1, "Random seed for deterministic corpora")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	docs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer docs.Close()

	invoices, pos, err := seed.Load(cmd.Context(), docs, seed.Options{
		Invoices: seedFlags.invoices,
		POs:      seedFlags.pos,
		Seed:     seedFlags.seed,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d invoices and %d purchase orders\n", invoices, pos)
	return nil
}
