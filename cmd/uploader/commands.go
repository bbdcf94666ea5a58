package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/japanesestudent/media-uploader/internal/client/uploader"
	"github.com/japanesestudent/media-uploader/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) newUploadCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload files as one batch",
		Long:  "Upload files as one batch. Interrupting the command cancels every file still in flight.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.upload(cmd.Context(), models.MediaKind(kind), args)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(models.MediaKindVideo), "Media kind (video or slide)")

	return cmd
}

func (c *cli) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List media attached to the scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.list(cmd.Context())
		},
	}
}

func (c *cli) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <media-id>",
		Short: "Delete a media asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.orch.DeleteAsset(cmd.Context(), c.scope, args[0]); err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}
			fmt.Fprintf(c.out, "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) upload(ctx context.Context, kind models.MediaKind, paths []string) error {
	if !kind.IsValid() {
		return fmt.Errorf("invalid kind %q: must be video or slide", kind)
	}

	files := make([]uploader.File, 0, len(paths))
	for _, path := range paths {
		file, err := uploader.FileFromPath(path)
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	progress := newProgressPrinter(c.out)
	ledger := uploader.NewLedger(uploader.WithLedgerListener(progress.print))

	result, err := c.orch.UploadBatch(ctx, c.scope, kind, files, ledger)
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}

	fmt.Fprintln(c.out, result.Message())
	for _, failure := range result.Failures {
		reason := failure.Reason
		if failure.Cancelled {
			reason = "cancelled"
		} else if reason == "" {
			reason = uploader.UserMessage(failure.Err)
		}
		fmt.Fprintf(c.out, "  %s: %s\n", failure.Name, reason)
	}
	if result.ReconcileErr != nil {
		c.logger.Warn("Failed to refresh media list", zap.Error(result.ReconcileErr))
	}

	if len(result.FailedNames) > 0 {
		return errUploadFailed
	}
	return nil
}

func (c *cli) list(ctx context.Context) error {
	assets, err := c.orch.Refresh(ctx, c.scope)
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}
	if len(assets) == 0 {
		fmt.Fprintln(c.out, "no media")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tNAME\tSIZE\tSTATUS\tURL")
	for _, asset := range assets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			asset.ID, asset.Kind, asset.DisplayName, asset.SizeOrZero(), asset.Status, asset.Preferred())
	}
	return w.Flush()
}
