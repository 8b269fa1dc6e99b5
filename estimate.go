package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sourcer/models"
)

var (
	estimateReq  models.EstimateRequest
	estimateJSON bool
	extractURL   string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate repairs for a listing URL or manual attributes",
	Example: `  sourcer estimate --url https://www.zillow.com/homedetails/123_zpid/
  sourcer estimate --sqft 2000 --bedrooms 4 --bathrooms 2.5 --yearBuilt 1975`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if estimateReq.URL == "" && !estimateReq.IsManual() {
			fmt.Fprintln(os.Stderr, "no --url and incomplete manual attributes, using the generic estimate")
		}

		p, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		res := p.orchestrator.Estimate(cmd.Context(), estimateReq)
		if estimateJSON {
			return writeEstimateJSON(os.Stdout, res)
		}
		printEstimate(os.Stdout, res)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract listing facts without estimating",
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractURL == "" {
			return eris.New("--url is required")
		}

		p, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()
		facts, err := p.extractor.Extract(ctx, extractURL)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(map[string]any{
			"facts":     facts,
			"succeeded": err == nil && facts.ExtractionSucceeded(),
		}); encErr != nil {
			return eris.Wrap(encErr, "write facts")
		}
		if err != nil {
			return eris.Wrap(err, "extract")
		}
		return nil
	},
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateReq.URL, "url", "", "listing URL")
	f.Var(flexFlag{&estimateReq.Zipcode}, "zipcode", "zipcode (telemetry only)")
	f.Var(flexFlag{&estimateReq.Sqft}, "sqft", "square footage")
	f.Var(flexFlag{&estimateReq.Bedrooms}, "bedrooms", "bedroom count")
	f.Var(flexFlag{&estimateReq.Bathrooms}, "bathrooms", "bathroom count, e.g. 2.5")
	f.Var(flexFlag{&estimateReq.YearBuilt}, "yearBuilt", "year built")
	f.BoolVar(&estimateJSON, "json", false, "print the API response body instead of a table")

	extractCmd.Flags().StringVar(&extractURL, "url", "", "listing URL")
}

// flexFlag adapts a FlexString to pflag.Value.
type flexFlag struct {
	v *models.FlexString
}

func (f flexFlag) String() string {
	if f.v == nil {
		return ""
	}
	return string(*f.v)
}

func (f flexFlag) Set(s string) error {
	*f.v = models.FlexString(s)
	return nil
}

func (f flexFlag) Type() string {
	return "string"
}

func writeEstimateJSON(w io.Writer, res *models.EstimateResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(struct {
		*models.EstimateResult
		Timestamp string `json:"timestamp"`
	}{res, res.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")}), "write estimate")
}

func printEstimate(w io.Writer, res *models.EstimateResult) {
	p := message.NewPrinter(language.English)

	if res.IsFallback() {
		p.Fprintf(w, "%s\n\n", res.Message)
	} else if pd := res.PropertyData; pd != nil {
		p.Fprintf(w, "%s\n", pd.Address)
		p.Fprintf(w, "%d sqft · %d bd · %v ba · built %d (age %d, condition x%v)\n",
			pd.Sqft, pd.Bedrooms, pd.Bathrooms, pd.YearBuilt, pd.Age, pd.ConditionMultiplier)
		if pd.Price > 0 {
			p.Fprintf(w, "List price $%d\n", pd.Price)
		}
		fmt.Fprintln(w)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tAMOUNT\tCONFIDENCE\t")
	for _, item := range res.Items {
		p.Fprintf(tw, "%s\t$%d\t%.0f%%\t\n", item.Label, item.Amount, item.Confidence*100)
	}
	p.Fprintf(tw, "Total\t$%d\t\t\n", res.Total)
	tw.Flush()

	p.Fprintf(w, "\nARV $%d (%s)\n", res.ARV, res.Source)
}
