package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jmerrifield20/lostfound/pkg/client"
	"github.com/spf13/cobra"
)

// ── report / edit ────────────────────────────────────────────────────────────

var (
	itemID          string
	itemKind        string
	itemTitle       string
	itemDescription string
	itemLocation    string
	itemDate        string
	itemImage       string
	itemImageURL    string
)

func addItemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&itemKind, "kind", "", "Item kind: lost or found (required)")
	cmd.Flags().StringVar(&itemTitle, "title", "", "Short title (required)")
	cmd.Flags().StringVar(&itemDescription, "description", "", "Free-text description")
	cmd.Flags().StringVar(&itemLocation, "location", "", "Where the item was lost or found")
	cmd.Flags().StringVar(&itemDate, "date", "", "When, e.g. 2024-03-01")
	cmd.Flags().StringVar(&itemImage, "image", "", "Path to a photo to upload")
	cmd.Flags().StringVar(&itemImageURL, "image-url", "", "Link to a photo hosted elsewhere")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("title")
}

func itemRequest() client.ItemRequest {
	return client.ItemRequest{
		ID:          itemID,
		Kind:        itemKind,
		Title:       itemTitle,
		Description: itemDescription,
		Location:    itemLocation,
		Date:        itemDate,
		ImageURL:    itemImageURL,
		ImagePath:   itemImage,
	}
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a lost or found item",
	Long: `Report appends a new item to the ledger as the current session owner.

  lf report --kind lost --title Wallet --location Library --date 2024-03-01
  lf report --kind found --title Keys --image ./keys.jpg`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		entry, err := c.ReportItem(context.Background(), itemRequest())
		if err != nil {
			return fmt.Errorf("report item: %w", err)
		}
		return printEntry(entry)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace the details of one of your items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		entry, err := c.EditItem(context.Background(), args[0], itemRequest())
		if err != nil {
			return fmt.Errorf("edit item %s: %w", args[0], err)
		}
		return printEntry(entry)
	},
}

func init() {
	reportCmd.Flags().StringVar(&itemID, "id", "", "Item id (generated when empty)")
	addItemFlags(reportCmd)
	addItemFlags(editCmd)
}

// ── withdraw ─────────────────────────────────────────────────────────────────

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <id>",
	Short: "Remove one of your items from the ledger",
	Long: `Withdraw removes an item you reported. Removing anything but the newest
item leaves the chain unverifiable until an operator runs 'lf rechain'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.WithdrawItem(context.Background(), args[0]); err != nil {
			if client.IsNotFound(err) {
				return fmt.Errorf("item %s not found", args[0])
			}
			return fmt.Errorf("withdraw item %s: %w", args[0], err)
		}
		fmt.Printf("Withdrawn: %s\n", args[0])
		return nil
	},
}

// ── list ─────────────────────────────────────────────────────────────────────

var listKind string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reported items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		items, err := c.ListItems(context.Background())
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		if listKind != "" {
			filtered := items[:0]
			for _, e := range items {
				if strings.EqualFold(e.Record.Kind, listKind) {
					filtered = append(filtered, e)
				}
			}
			items = filtered
		}

		if outputFormat == "json" {
			return printJSON(items)
		}
		if len(items) == 0 {
			fmt.Println("No items.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tTITLE\tLOCATION\tDATE\tOWNER")
		for _, e := range items {
			r := e.Record
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Title, r.Location, r.Date, r.OwnerID)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "Only show lost or found items")
}

func printEntry(e *client.Entry) error {
	if outputFormat == "json" {
		return printJSON(e)
	}
	r := e.Record
	fmt.Printf("ID:          %s\n", r.ID)
	fmt.Printf("Kind:        %s\n", r.Kind)
	fmt.Printf("Title:       %s\n", r.Title)
	if r.Description != "" {
		fmt.Printf("Description: %s\n", r.Description)
	}
	if r.Location != "" {
		fmt.Printf("Location:    %s\n", r.Location)
	}
	if r.Date != "" {
		fmt.Printf("Date:        %s\n", r.Date)
	}
	if r.ImageURL != "" {
		fmt.Printf("Image:       %s\n", abbreviate(r.ImageURL, 60))
	}
	fmt.Printf("Owner:       %s\n", r.OwnerID)
	fmt.Printf("Recorded:    %s\n", e.Time().Format("2006-01-02 15:04:05"))
	fmt.Printf("Fingerprint: %s\n", e.Fingerprint)
	return nil
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
