package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewBuildCmd создаёт группу команд для управления builds.
func NewBuildCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Manage builds",
	}

	cmd.AddCommand(
		newBuildListCmd(clientFn, outputFn),
		newBuildStartCmd(clientFn, outputFn),
		newBuildShowCmd(clientFn, outputFn),
		newBuildCancelCmd(clientFn, outputFn),
		newBuildTasksCmd(clientFn, outputFn),
		newBuildArtifactsCmd(clientFn, outputFn),
	)

	return cmd
}

func newBuildListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipelineID string
	var status string
	var branch string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			builds, err := client.ListBuilds(ListBuildsOpts{
				PipelineID: pipelineID,
				Status:     status,
				Branch:     branch,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "PIPELINE_ID", "BRANCH", "TAG", "STATUS", "TRIGGER", "CREATED"}
			rows := make([][]string, len(builds))
			for i, b := range builds {
				rows[i] = []string{b.ID, b.PipelineID, b.Branch, b.ImageTag, b.Status, b.Trigger, b.CreatedAt}
			}

			out.Print(headers, rows, builds)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Filter by pipeline ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().StringVar(&branch, "branch", "", "Filter by branch")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newBuildStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var branch string
	var commit string
	var version int
	var inputs []string

	cmd := &cobra.Command{
		Use:   "start PIPELINE_ID",
		Short: "Start a new build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateBuildRequest{
				Branch: branch,
				Commit: commit,
			}

			if cmd.Flags().Changed("version") {
				req.Version = &version
			}

			if len(inputs) > 0 {
				req.Inputs = make(map[string]any)
				for _, kv := range inputs {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
					}
					req.Inputs[parts[0]] = parts[1]
				}
			}

			// Ветка вне маппинга ветка → тег вернёт INVALID_STATE;
			// через RunE это завершит процесс с кодом 1.
			build, err := client.CreateBuild(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Build started: %s (tag: %s)", build.ID, build.ImageTag))
			out.Print(
				[]string{"ID", "PIPELINE_ID", "BRANCH", "TAG", "STATUS", "CREATED"},
				[][]string{{build.ID, build.PipelineID, build.Branch, build.ImageTag, build.Status, build.CreatedAt}},
				build,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "Branch to build (required, determines image tag)")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit SHA (branch HEAD if not specified)")
	cmd.Flags().IntVar(&version, "version", 0, "Pipeline version (latest if not specified)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.MarkFlagRequired("branch")

	return cmd
}

func newBuildShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show build details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			build, err := client.GetBuild(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "PIPELINE_ID", "BRANCH", "COMMIT", "TAG", "STATUS", "ERROR", "CREATED"},
				[][]string{{build.ID, build.PipelineID, build.Branch, build.Commit, build.ImageTag, build.Status, build.Error, build.CreatedAt}},
				build,
			)
			return nil
		},
	}
}

func newBuildCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			build, err := client.CancelBuild(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Build cancelled: %s", build.ID))
			return nil
		},
	}
}

func newBuildTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks BUILD_ID",
		Short: "List tasks in a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "STEP_ID", "TYPE", "STATUS", "ATTEMPT", "ERROR"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.ID, t.StepID, t.Type, t.Status, strconv.Itoa(t.Attempt), t.Error}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}

func newBuildArtifactsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts BUILD_ID",
		Short: "List images pushed by a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			artifacts, err := client.ListBuildArtifacts(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "IMAGE", "DIGEST", "PUSHED"}
			rows := make([][]string, len(artifacts))
			for i, a := range artifacts {
				rows[i] = []string{a.ID, a.Image, a.Digest, a.PushedAt}
			}

			out.Print(headers, rows, artifacts)
			return nil
		},
	}
}
