package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/rank"
)

var (
	suggestLimit int

	rankNetwork     string
	rankMaxDistance float64
	rankMinPrice    float64
	rankMaxPrice    float64
	rankSortBy      string
	rankOffset      int
	rankLimit       int
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Autocomplete suggestions for a partial query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), eng.Suggest(strings.Join(args, " "), suggestLimit))
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <query>",
	Short: "Resolve a finished query to an entity or a collection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), eng.Resolve(strings.Join(args, " ")))
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank [query]",
	Short: "Filter, sort and page care options",
	Long: `Rank resolves the query and ranks its results. Without a query it
ranks every candidate in the snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}

		spec := cfg.FilterSpec()
		flags := cmd.Flags()
		if flags.Changed("network") {
			spec = spec.WithNetwork(rankNetwork)
		}
		if flags.Changed("max-distance") {
			spec = spec.WithMaxDistance(rankMaxDistance)
		}
		lo, hi := spec.PriceRange[0], spec.PriceRange[1]
		if flags.Changed("min-price") {
			lo = rankMinPrice
		}
		if flags.Changed("max-price") {
			hi = rankMaxPrice
		}
		spec = spec.WithPriceRange(lo, hi).WithSortBy(rank.ParseSortBy(rankSortBy))
		page := rank.PageRequest{Offset: rankOffset, Limit: rankLimit}

		if len(args) == 0 {
			return printJSON(cmd.OutOrStdout(), eng.Rank(spec, page))
		}
		res, p := eng.Search(strings.Join(args, " "), spec, page)
		return printJSON(cmd.OutOrStdout(), map[string]any{"resolved": res, "page": p})
	},
}

var spellCmd = &cobra.Command{
	Use:   "spell <query>",
	Short: "Suggest a spelling correction",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		q := strings.Join(args, " ")
		correction, changed := eng.Spell(q)
		out := map[string]any{"query": q, "changed": changed}
		if changed {
			out["did_you_mean"] = correction
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var sortOptionsCmd = &cobra.Command{
	Use:   "sort-options",
	Short: "List the available sort modes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, o := range rank.SortOptions {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", o.SortBy, o.Label)
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a snapshot between JSON and msgpack",
	Long: `Convert reads a snapshot, repairing malformed JSON and dropping
entries that are not objects, and writes it in the format implied by the
output extension (.json or .msgpack).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := dictionary.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := dictionary.WriteFile(args[1], doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d terms and %d candidates to %s (repaired: %t, dropped: %d)\n",
			len(doc.Terms), len(doc.Candidates), args[1], doc.Repaired, doc.Dropped)
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "l", 8, "number of suggestions")

	rankCmd.Flags().StringVar(&rankNetwork, "network", "", "network filter (in, out, all)")
	rankCmd.Flags().Float64Var(&rankMaxDistance, "max-distance", 0, "maximum distance in miles")
	rankCmd.Flags().Float64Var(&rankMinPrice, "min-price", 0, "minimum price")
	rankCmd.Flags().Float64Var(&rankMaxPrice, "max-price", 0, "maximum price")
	rankCmd.Flags().StringVarP(&rankSortBy, "sort", "s", string(rank.SortBestValue), "sort mode, see sort-options")
	rankCmd.Flags().IntVar(&rankOffset, "offset", 0, "page offset")
	rankCmd.Flags().IntVarP(&rankLimit, "limit", "l", 0, "page size, 0 for the default")

	rootCmd.AddCommand(suggestCmd, resolveCmd, rankCmd, spellCmd, sortOptionsCmd, convertCmd)
}
