package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kreativ/KreativPoster/internal/mq"
)

// NewPostCmd создаёт группу команд для управления постами.
func NewPostCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Manage scheduled posts",
	}

	cmd.AddCommand(
		newPostListCmd(clientFn, outputFn),
		newPostCreateCmd(clientFn, outputFn),
		newPostShowCmd(clientFn, outputFn),
		newPostUpdateCmd(clientFn, outputFn),
		newPostDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

// NewSchedulerCmd создаёт группу команд управления планировщиком.
func NewSchedulerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Control the publish scheduler",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Trigger an immediate scheduled-posts check",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			check, err := client.CheckScheduled()
			if err != nil {
				return err
			}

			if len(check.Due) == 0 {
				out.Success("No posts due")
				return nil
			}

			headers := []string{"ID", "CAPTION", "SCHEDULED_FOR", "STATUS"}
			rows := make([][]string, len(check.Due))
			for i, p := range check.Due {
				rows[i] = []string{p.ID, shorten(p.Caption, 40), p.ScheduledFor, p.Status}
			}
			out.Print(headers, rows, check.Due)
			return nil
		},
	})

	cmd.AddCommand(newSchedulerWakeCmd(outputFn))

	return cmd
}

// newSchedulerWakeCmd будит планировщик через брокер — путь для
// окружений, где API недоступен, а RabbitMQ есть.
func newSchedulerWakeCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string

	cmd := &cobra.Command{
		Use:   "wake",
		Short: "Send a wake signal through the message broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			conn, err := mq.NewConnection(amqpURL, quiet)
			if err != nil {
				return fmt.Errorf("connect to broker: %w", err)
			}
			defer conn.Close()

			if err := mq.SetupTopology(conn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := mq.NewPublisher(conn, quiet).PublishWake(ctx); err != nil {
				return fmt.Errorf("publish wake: %w", err)
			}

			out.Success("Wake signal sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", mq.DefaultURL(), "RabbitMQ connection URL")

	return cmd
}

func newPostListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			posts, err := client.ListPosts(status)
			if err != nil {
				return err
			}

			headers := []string{"ID", "CAPTION", "PLATFORMS", "SCHEDULED_FOR", "STATUS", "ATTEMPT"}
			rows := make([][]string, len(posts))
			for i, p := range posts {
				rows[i] = []string{
					p.ID, shorten(p.Caption, 40), strings.Join(p.Platforms, ","),
					p.ScheduledFor, p.Status, strconv.Itoa(p.Attempt),
				}
			}

			out.Print(headers, rows, posts)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (scheduled, publishing, published, failed)")

	return cmd
}

func newPostCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var caption string
	var imageURL string
	var platforms []string
	var at string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a new post",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			scheduledFor, err := parseTime(at)
			if err != nil {
				return err
			}

			post, err := client.CreatePost(CreatePostRequest{
				Caption:      caption,
				ImageURL:     imageURL,
				Platforms:    platforms,
				ScheduledFor: scheduledFor,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Post scheduled: %s", post.ID))
			printPost(out, post)
			return nil
		},
	}

	cmd.Flags().StringVar(&caption, "caption", "", "Post caption (required)")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "Image URL")
	cmd.Flags().StringSliceVar(&platforms, "platforms", nil, "Target platforms, comma-separated (required)")
	cmd.Flags().StringVar(&at, "at", "", "Publish time, RFC3339 (required)")
	cmd.MarkFlagRequired("caption")
	cmd.MarkFlagRequired("platforms")
	cmd.MarkFlagRequired("at")

	return cmd
}

func newPostShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show POST_ID",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			post, err := client.GetPost(args[0])
			if err != nil {
				return err
			}

			printPost(out, post)
			return nil
		},
	}
}

func newPostUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var caption string
	var imageURL string
	var platforms []string
	var at string

	cmd := &cobra.Command{
		Use:   "update POST_ID",
		Short: "Update a scheduled post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var req UpdatePostRequest
			if cmd.Flags().Changed("caption") {
				req.Caption = &caption
			}
			if cmd.Flags().Changed("image-url") {
				req.ImageURL = &imageURL
			}
			if cmd.Flags().Changed("platforms") {
				req.Platforms = platforms
			}
			if cmd.Flags().Changed("at") {
				scheduledFor, err := parseTime(at)
				if err != nil {
					return err
				}
				req.ScheduledFor = &scheduledFor
			}

			post, err := client.UpdatePost(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Post updated: %s", post.ID))
			printPost(out, post)
			return nil
		},
	}

	cmd.Flags().StringVar(&caption, "caption", "", "New caption")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "New image URL")
	cmd.Flags().StringSliceVar(&platforms, "platforms", nil, "New target platforms")
	cmd.Flags().StringVar(&at, "at", "", "New publish time, RFC3339")

	return cmd
}

func newPostDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete POST_ID",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeletePost(args[0]); err != nil {
				return err
			}

			out.Success("Post deleted")
			return nil
		},
	}
}

// printPost выводит один пост с результатами публикации.
func printPost(out *Output, post *PostResponse) {
	out.Print(
		[]string{"ID", "CAPTION", "PLATFORMS", "SCHEDULED_FOR", "STATUS", "ATTEMPT"},
		[][]string{{
			post.ID, shorten(post.Caption, 40), strings.Join(post.Platforms, ","),
			post.ScheduledFor, post.Status, strconv.Itoa(post.Attempt),
		}},
		post,
	)

	if len(post.Results) > 0 {
		rows := make([][]string, len(post.Results))
		for i, res := range post.Results {
			outcome := "ok"
			if !res.Success {
				outcome = "failed"
			}
			rows[i] = []string{res.Platform, outcome, res.Error}
		}
		out.Table([]string{"PLATFORM", "OUTCOME", "ERROR"}, rows)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected RFC3339 (2026-01-02T15:04:05Z): %w", s, err)
	}
	return t, nil
}

func shorten(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
