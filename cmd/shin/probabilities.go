package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/shin/internal/api"
	"github.com/yourusername/shin/internal/client"
	"github.com/yourusername/shin/internal/odds"
	"github.com/yourusername/shin/internal/service"
	"github.com/yourusername/shin/internal/shin"
)

var (
	maxIterations int
	threshold     float64
	remoteURL     string
	jsonOutput    bool
)

var probabilitiesCmd = &cobra.Command{
	Use:   "probabilities PRICE... | LABEL=PRICE...",
	Short: "Compute implied probabilities for quoted prices",
	Long: `Compute Shin implied probabilities for a market. Prices may be decimal
(2.5), fractional (3/2, evens) or American (+150, -200). Prices given as
LABEL=PRICE are reported by label, in label order.`,
	Example: `  shin probabilities 2.6 2.4 4.3
  shin probabilities evens 5/2 +400 --json
  shin probabilities 2.6 2.4 4.3 --remote http://localhost:8080
  shin probabilities home=2.6 draw=3.4 away=2.9`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		opts := solverOptions()
		if cmd.Flags().Changed("max-iterations") {
			opts.MaxIterations = maxIterations
		}
		if cmd.Flags().Changed("threshold") {
			opts.ConvergenceThreshold = threshold
		}

		if strings.Contains(args[0], "=") {
			if remoteURL != "" {
				return errors.New("labelled prices are only computed locally")
			}
			return labelledProbabilities(ctx, cmd.OutOrStdout(), args, opts)
		}

		var (
			resp *api.ImpliedProbabilitiesResponse
			err  error
		)
		if remoteURL != "" {
			resp, err = remoteProbabilities(ctx, args, opts)
		} else {
			resp, err = localProbabilities(ctx, args, opts)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		return printProbabilities(cmd.OutOrStdout(), args, resp)
	},
}

func init() {
	probabilitiesCmd.Flags().IntVarP(&maxIterations, "max-iterations", "m", shin.DefaultMaxIterations, "Iteration cap for the z solver")
	probabilitiesCmd.Flags().Float64VarP(&threshold, "threshold", "t", shin.DefaultConvergenceThreshold, "Convergence threshold for the z solver")
	probabilitiesCmd.Flags().StringVar(&remoteURL, "remote", "", "Base URL of a shin API to compute against")
	probabilitiesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
}

func localProbabilities(ctx context.Context, quoted []string, opts shin.Options) (*api.ImpliedProbabilitiesResponse, error) {
	prices, err := odds.ParsePrices(quoted)
	if err != nil {
		return nil, err
	}

	svc := service.NewDemarginService(nil, nil, nil, opts, logger)
	result, err := svc.Calculate(ctx, prices)
	if err != nil && !(errors.Is(err, service.ErrNonFinite) && result != nil) {
		return nil, err
	}

	resp := api.NewImpliedProbabilitiesResponse("", result)
	return &resp, nil
}

// labelledResponse is the JSON form of a labelled solve. NaN and Inf are null.
type labelledResponse struct {
	ImpliedProbabilities map[string]*float64 `json:"implied_probabilities"`
	Z                    *float64            `json:"z"`
	Delta                *float64            `json:"delta"`
	Iterations           int                 `json:"iterations"`
	SumInverseOdds       *float64            `json:"sum_inverse_odds"`
}

func labelledProbabilities(ctx context.Context, out io.Writer, args []string, opts shin.Options) error {
	quotes, prices, err := parseLabelled(args)
	if err != nil {
		return err
	}

	svc := service.NewDemarginService(nil, nil, nil, opts, logger)
	result, err := svc.CalculateLabelled(ctx, prices)
	if err != nil && !(errors.Is(err, service.ErrNonFinite) && result != nil) {
		return err
	}

	if jsonOutput {
		resp := labelledResponse{
			ImpliedProbabilities: make(map[string]*float64, len(result.ImpliedProbabilities)),
			Z:                    nullable(result.Z),
			Delta:                nullable(result.Delta),
			Iterations:           result.Iterations,
			SumInverseOdds:       nullable(result.SumInverseOdds),
		}
		for label, p := range result.ImpliedProbabilities {
			resp.ImpliedProbabilities[label] = nullable(p)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	labels := make([]string, 0, len(quotes))
	for label := range quotes {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tPRICE\tPROBABILITY")
	for _, label := range labels {
		fmt.Fprintf(w, "%s\t%s\t%s\n", label, quotes[label], formatNullable(nullable(result.ImpliedProbabilities[label]), 6))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "z\t%s\n", formatNullable(nullable(result.Z), 8))
	fmt.Fprintf(w, "delta\t%s\n", formatNullable(nullable(result.Delta), 3))
	fmt.Fprintf(w, "iterations\t%d\n", result.Iterations)

	return w.Flush()
}

// parseLabelled splits LABEL=PRICE arguments. Labels must be unique.
func parseLabelled(args []string) (map[string]string, map[string]float64, error) {
	quotes := make(map[string]string, len(args))
	prices := make(map[string]float64, len(args))
	for _, arg := range args {
		label, quoted, ok := strings.Cut(arg, "=")
		if !ok || label == "" {
			return nil, nil, fmt.Errorf("expected LABEL=PRICE, got %q", arg)
		}
		if _, dup := quotes[label]; dup {
			return nil, nil, fmt.Errorf("duplicate label %q", label)
		}
		price, err := odds.ParsePrice(quoted)
		if err != nil {
			return nil, nil, fmt.Errorf("price for %s: %w", label, err)
		}
		quotes[label] = quoted
		prices[label] = price.InexactFloat64()
	}
	return quotes, prices, nil
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func remoteProbabilities(ctx context.Context, quoted []string, opts shin.Options) (*api.ImpliedProbabilitiesResponse, error) {
	c, err := client.New(remoteURL, client.DefaultHTTPClientConfig(), logger)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return c.ImpliedProbabilities(ctx, api.ImpliedProbabilitiesRequest{
		Odds:                 quoted,
		MaxIterations:        &opts.MaxIterations,
		ConvergenceThreshold: &opts.ConvergenceThreshold,
	})
}

func printProbabilities(out io.Writer, quoted []string, resp *api.ImpliedProbabilitiesResponse) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "PRICE\tPROBABILITY")
	for i, p := range resp.ImpliedProbabilities {
		fmt.Fprintf(w, "%s\t%s\n", quoted[i], formatNullable(p, 6))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "z\t%s\n", formatNullable(resp.Z, 8))
	fmt.Fprintf(w, "delta\t%s\n", formatNullable(resp.Delta, 3))
	fmt.Fprintf(w, "iterations\t%d\n", resp.Iterations)
	fmt.Fprintf(w, "overround\t%s\n", formatNullable(resp.Overround, 4))

	return w.Flush()
}

func formatNullable(f *float64, prec int) string {
	if f == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*f, 'g', prec, 64)
}
