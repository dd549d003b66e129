package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/shennong/pkg/model"
)

func newJobsCmd() *cobra.Command {
	opts := model.DefaultListOptions()
	var all bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List submitted jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := currentUser()
			if err != nil {
				return err
			}

			var page *model.Page[model.Job]
			if all {
				page, err = client.ListAllJobs(cmd.Context(), opts)
			} else {
				page, err = client.ListUserJobs(cmd.Context(), u.ID, opts)
			}
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Data) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}

			fmt.Fprintf(out, "%-6s  %-10s  %-25s  %s\n", "ID", "STATE", "CREATED", "OWNER")
			fmt.Fprintf(out, "%-6s  %-10s  %-25s  %s\n", "--", "-----", "-------", "-----")
			for _, j := range page.Data {
				owner := ""
				if j.User != nil {
					owner = j.User.Email
				}
				fmt.Fprintf(out, "%-6d  %-10s  %-25s  %s\n", j.ID, j.State(), j.Created, owner)
			}

			if page.HasMore() {
				fmt.Fprintf(out, "\n(page %d, %d of %d shown; use --page %d for more)\n",
					page.Page, len(page.Data), page.Total, page.Page+1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", opts.Page, "Page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", opts.PerPage, "Jobs per page (max 100)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "Sort column")
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&all, "all", false, "List every user's jobs (admin only)")
	return cmd
}

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := currentUser()
			if err != nil {
				return err
			}
			id, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			j, err := client.GetUserJob(cmd.Context(), u.ID, id)
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			printJob(cmd.OutOrStdout(), j)
			return nil
		},
	}
	cmd.AddCommand(newJobRetryCmd())
	return cmd
}

func newJobRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Load a finished job into the draft to modify and submit again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := currentUser()
			if err != nil {
				return err
			}
			id, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()

			d, err := ws.PrefillFromJob(cmd.Context(), u.ID, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Draft loaded from job %d: %d file(s), %d analyses.\n", id, len(d.Files), len(d.Analyses))
			fmt.Fprintln(cmd.OutOrStdout(), "Review with `shennong show`, then `shennong submit`.")
			return nil
		},
	}
}

func printJob(w io.Writer, j *model.Job) {
	fmt.Fprintf(w, "Job: %d\n", j.ID)
	fmt.Fprintf(w, "  State:    %s\n", j.State())
	fmt.Fprintf(w, "  Created:  %s\n", j.Created)
	if j.TaskInfo != nil && j.TaskInfo.DateDone != "" {
		fmt.Fprintf(w, "  Done:     %s\n", j.TaskInfo.DateDone)
	}
	if j.CanRetry {
		fmt.Fprintf(w, "  Retry:    shennong job retry %d\n", j.ID)
	}
	if j.Taskmeta == nil || j.Taskmeta.Kwargs == nil {
		return
	}

	cfg := j.Taskmeta.Kwargs.Config
	fmt.Fprintf(w, "  Channel:  %d\n", cfg.Channel)
	fmt.Fprintf(w, "  Results:  %s\n", cfg.Res)
	fmt.Fprintf(w, "  Files:    %d\n", len(cfg.Files))
	for _, f := range cfg.Files {
		fmt.Fprintf(w, "    - %s\n", f)
	}
	names := make([]string, 0, len(cfg.Analyses))
	for name := range cfg.Analyses {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "  Analyses:")
	for _, name := range names {
		sel := cfg.Analyses[name]
		line := "    - " + name
		if len(sel.Postprocessors) > 0 {
			line += " + " + strings.Join(sel.Postprocessors, ", ")
		}
		fmt.Fprintln(w, line)
	}
	if j.TaskInfo != nil && j.TaskInfo.Traceback != nil {
		fmt.Fprintf(w, "  Error:\n%s\n", *j.TaskInfo.Traceback)
	}
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List user accounts (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := currentUser(); err != nil {
				return err
			}
			users, err := client.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s  %-30s  %-20s  %s\n", "ID", "EMAIL", "USERNAME", "ROLES")
			fmt.Fprintf(out, "%-6s  %-30s  %-20s  %s\n", "--", "-----", "--------", "-----")
			for _, u := range users {
				roles := make([]string, len(u.Roles))
				for i, r := range u.Roles {
					roles[i] = r.Role
				}
				fmt.Fprintf(out, "%-6d  %-30s  %-20s  %s\n", u.ID, u.Email, u.Username, strings.Join(roles, ","))
			}
			return nil
		},
	}
}
