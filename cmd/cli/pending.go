package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iho/bankrecon/internal/adapter/http/dto"
)

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Pending item operations",
	}
	cmd.AddCommand(createPendingCmd(), resolvePendingCmd(), pendingSummaryCmd())
	return cmd
}

func createPendingCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "create RUN_ID SYSTEM_LINE_ID AREA",
		Short: "Assign an unmatched system line to an area",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := dto.CreatePendingRequest{SystemLineID: args[1], Area: args[2], Note: note}
			var item dto.PendingItemResponse
			if err := newClient().do(ctx, http.MethodPost, "/runs/"+url.PathEscape(args[0])+"/pending", req, &item); err != nil {
				return err
			}
			fmt.Printf("Pending %s created for %s (%s)\n", item.ID, item.Area, item.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Note for the area")
	return cmd
}

func resolvePendingCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "resolve RUN_ID PENDING_ID",
		Short: "Mark a pending item as resolved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			path := "/runs/" + url.PathEscape(args[0]) + "/pending/" + url.PathEscape(args[1]) + "/resolve"
			var item dto.PendingItemResponse
			if err := newClient().do(ctx, http.MethodPost, path, dto.ResolvePendingRequest{Note: note}, &item); err != nil {
				return err
			}
			fmt.Printf("Pending %s is %s\n", item.ID, item.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Resolution note")
	return cmd
}

func pendingSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary RUN_ID",
		Short: "List active pending items grouped by area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			var areas []dto.AreaPendingResponse
			if err := newClient().do(ctx, http.MethodGet, "/runs/"+url.PathEscape(args[0])+"/pending/summary", nil, &areas); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AREA\tID\tSTATUS\tAMOUNT\tDESCRIPTION")
			for _, a := range areas {
				if len(a.Items) == 0 {
					fmt.Fprintf(tw, "%s\t-\t\t\t\n", a.Area)
					continue
				}
				for _, it := range a.Items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Area, it.ID, it.Status, it.Amount, truncate(it.Description, 40))
				}
			}
			return tw.Flush()
		},
	}
}
