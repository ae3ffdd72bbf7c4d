package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"render-sender/internal/core"
	"render-sender/internal/domain"
	"render-sender/internal/jobs"
	"render-sender/internal/sender"
)

var errWireframeWithoutAsset = errors.New("--wireframe needs --asset: the tag is part of the composed caption")

func newSendCommand(ctx *commandContext) *cobra.Command {
	var (
		project   string
		caption   string
		asset     string
		wireframe bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send FILE...",
		Short: "Send files as one grouped message and wait for delivery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wireframe && strings.TrimSpace(asset) == "" {
				return errWireframeWithoutAsset
			}
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			if strings.TrimSpace(project) == "" {
				project = settings.CurrentProject
			}

			text := caption
			if strings.TrimSpace(asset) != "" {
				text, err = sender.ComposeCaption(sender.Message{
					Text:      caption,
					Project:   project,
					Asset:     asset,
					Wireframe: wireframe,
				})
				if err != nil {
					return err
				}
			}

			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			c := core.New(settings, logger)
			defer c.Close()

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			c.Service.Events().Listen(progressPrinter(cmd.ErrOrStderr()))
			c.Start(runCtx)

			id, err := c.Service.Submit(sender.Request{Files: args, Caption: text, Project: project})
			if err != nil {
				return err
			}

			waitCtx := runCtx
			if timeout > 0 {
				var waitCancel context.CancelFunc
				waitCtx, waitCancel = context.WithTimeout(runCtx, timeout)
				defer waitCancel()
			}
			if err := c.Service.Wait(waitCtx); err != nil {
				return fmt.Errorf("wait for job %s: %w", id, err)
			}

			job, _ := c.Service.Tracker().Get(id)
			if job.Status != domain.JobStatusDone {
				return fmt.Errorf("send failed: %s", job.Error)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d file(s) for %s (job %s)\n", len(job.Files), job.Project, job.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name (defaults to current_project)")
	cmd.Flags().StringVarP(&caption, "caption", "m", "", "Caption text")
	cmd.Flags().StringVarP(&asset, "asset", "a", "", "Asset name; adds the project line and #asset tag to the caption")
	cmd.Flags().BoolVar(&wireframe, "wireframe", false, "Tag the message with "+sender.WireframeTag+" (requires --asset)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")
	return cmd
}

func progressPrinter(w io.Writer) func(jobs.Event) {
	return func(event jobs.Event) {
		if event.Type == jobs.EventTypeStatus && event.Status != "" {
			fmt.Fprintf(w, "%s: %s\n", event.Status, shortID(event.JobID))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
