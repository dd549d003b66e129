package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/shennong/internal/progress"
	"github.com/me/shennong/internal/upload"
	"github.com/me/shennong/pkg/model"
)

func newUploadCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload audio files and add them to the job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()

			meter := newMeter(cmd.ErrOrStderr(), quiet)
			res, err := ws.UploadFiles(cmd.Context(), args, meter.observe)
			if err != nil {
				return err
			}
			return reportUpload(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

func newRetryCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "retry [name...]",
		Short: "Upload failed files again (all of them by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()

			meter := newMeter(cmd.ErrOrStderr(), quiet)
			res, err := ws.RetryFailed(cmd.Context(), args, meter.observe)
			if err != nil {
				return err
			}
			return reportUpload(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

// meter prints overall progress every time it advances by ten percent.
type meter struct {
	w     io.Writer
	quiet bool
	agg   *progress.Aggregator

	mu   sync.Mutex
	last int
}

func newMeter(w io.Writer, quiet bool) *meter {
	return &meter{w: w, quiet: quiet, agg: progress.NewAggregator(), last: -10}
}

func (m *meter) observe(s model.ProgressSample) {
	if !m.agg.Observe(s) || m.quiet {
		return
	}
	overall := m.agg.Overall()
	pct := progress.Percent(overall)

	m.mu.Lock()
	defer m.mu.Unlock()
	if pct < m.last+10 && (pct != 100 || m.last == 100) {
		return
	}
	m.last = pct
	fmt.Fprintf(m.w, "uploading %d file(s): %s / %s (%d%%)\n", m.agg.Len(),
		humanize.IBytes(uint64(overall.BytesLoaded)), humanize.IBytes(uint64(overall.BytesTotal)), pct)
}

func reportUpload(w io.Writer, res upload.Result) error {
	var total int64
	for _, s := range res.Succeeded {
		total += s.Size
	}
	fmt.Fprintf(w, "Uploaded %d file(s) (%s)\n", len(res.Succeeded), humanize.IBytes(uint64(total)))
	for _, s := range res.Succeeded {
		fmt.Fprintf(w, "  + %s\n", s.Name)
	}
	if len(res.Failed) == 0 {
		return nil
	}
	fmt.Fprintf(w, "Failed %d file(s):\n", len(res.Failed))
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  ! %s: %s\n", f.Name(), f.Message())
	}
	fmt.Fprintln(w, "Run `shennong retry` to try again.")
	return nil
}

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List files uploaded for the job",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()

			d, err := ws.Draft(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(d.Files) == 0 {
				fmt.Fprintln(out, "No files uploaded.")
				return nil
			}
			fmt.Fprintf(out, "%-30s  %-10s  %s\n", "NAME", "SIZE", "KEY")
			fmt.Fprintf(out, "%-30s  %-10s  %s\n", "----", "----", "---")
			for _, f := range d.Files {
				fmt.Fprintf(out, "%-30s  %-10s  %s\n", f.Name, humanize.IBytes(uint64(f.Size)), f.RemoteKey)
			}
			return nil
		},
	}
	cmd.AddCommand(newFilesRmCmd())
	return cmd
}

func newFilesRmCmd() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove an uploaded file from the job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()

			if err := ws.RemoveUploaded(cmd.Context(), args[0], purge); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the object from the bucket")
	return cmd
}

func newFailuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List files that failed to upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()

			failures, err := ws.Failures(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(failures) == 0 {
				fmt.Fprintln(out, "No failed uploads.")
				return nil
			}
			fmt.Fprintf(out, "%-30s  %-10s  %-20s  %s\n", "NAME", "SIZE", "REASON", "WHEN")
			fmt.Fprintf(out, "%-30s  %-10s  %-20s  %s\n", "----", "----", "------", "----")
			for _, f := range failures {
				fmt.Fprintf(out, "%-30s  %-10s  %-20s  %s\n", f.Name,
					humanize.IBytes(uint64(f.Size)), f.Reason, humanize.Time(f.CreatedAt))
				fmt.Fprintf(out, "    %s\n", f.Reason.Message())
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Dismiss a failed upload without retrying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()
			return ws.DismissFailure(cmd.Context(), args[0])
		},
	})
	return cmd
}
