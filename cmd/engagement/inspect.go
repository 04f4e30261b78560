package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/config"
	"github.com/tbourn/go-design-engagement/internal/repo"
)

// errLikeDrift is returned by audit when a design's like counter disagrees
// with its like records.
var errLikeDrift = errors.New("like counter drift")

// inspectCommands returns the operator commands that read the store
// directly: notifications and audit.
func inspectCommands(cfg *config.Config) []*cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	notes := &cobra.Command{
		Use:   "notifications <recipient-id>",
		Short: "List a recipient's notifications, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(*cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			return printNotifications(cmd.Context(), db, cmd.OutOrStdout(), args[0], limit, asJSON)
		},
	}
	notes.Flags().IntVar(&limit, "limit", 20, "number of entries (0 = all)")
	notes.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	audit := &cobra.Command{
		Use:   "audit <design-id>",
		Short: "Compare a design's like counter with its like records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(*cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			return auditLikes(cmd.Context(), db, cmd.OutOrStdout(), args[0])
		},
	}
	return []*cobra.Command{notes, audit}
}

func printNotifications(ctx context.Context, db *gorm.DB, out io.Writer, recipient string, limit int, asJSON bool) error {
	list, err := repo.ListNotifications(ctx, db, recipient, limit)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tKIND\tRELATED\tMESSAGE")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.CreatedAt.Format(time.RFC3339), n.Kind, n.RelatedID, n.Message)
	}
	return tw.Flush()
}

func auditLikes(ctx context.Context, db *gorm.DB, out io.Writer, designID string) error {
	d, err := repo.GetDesign(ctx, db, designID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("design %q not found", designID)
		}
		return err
	}
	n, err := repo.CountLikes(ctx, db, designID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "design %s: like_count=%d like_records=%d\n", d.ID, d.LikeCount, n)
	if n != d.LikeCount {
		return fmt.Errorf("%w: design %s counter=%d records=%d", errLikeDrift, d.ID, d.LikeCount, n)
	}
	return nil
}
