package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/shennong/internal/draft"
	"github.com/me/shennong/pkg/model"
)

// jobFile is the YAML form of a job accepted by `submit --config`.
type jobFile struct {
	Channel  int                    `yaml:"channel"`
	Email    string                 `yaml:"email"`
	Files    []string               `yaml:"files"`
	Res      string                 `yaml:"res"`
	Analyses map[string]jobAnalysis `yaml:"analyses"`
}

type jobAnalysis struct {
	InitArgs       map[string]any `yaml:"init_args"`
	Postprocessors []string       `yaml:"postprocessors"`
}

func readJobFile(path string) (model.JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.JobConfig{}, fmt.Errorf("read job file: %w", err)
	}
	jf := jobFile{Channel: draft.DefaultChannel, Res: draft.DefaultRes}
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return model.JobConfig{}, fmt.Errorf("parse job file: %w", err)
	}

	cfg := model.JobConfig{
		Channel:  jf.Channel,
		Email:    jf.Email,
		Files:    jf.Files,
		Res:      jf.Res,
		Analyses: make(map[string]model.AnalysisSelection, len(jf.Analyses)),
	}
	for name, a := range jf.Analyses {
		sel := model.AnalysisSelection{InitArgs: a.InitArgs, Postprocessors: a.Postprocessors}
		if sel.InitArgs == nil {
			sel.InitArgs = map[string]any{}
		}
		if sel.Postprocessors == nil {
			sel.Postprocessors = []string{}
		}
		cfg.Analyses[name] = sel
	}
	return cfg, nil
}

func newSubmitCmd() *cobra.Command {
	var jobPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the job",
		Long: "Validate the job being prepared and submit it. With --config, submit the job " +
			"described in a YAML file instead; the draft is left alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var d draft.Draft
			if jobPath != "" {
				cfg, err := readJobFile(jobPath)
				if err != nil {
					return err
				}
				if cfg.Email == "" {
					cfg.Email = ws.Email
				}
				d = draft.FromConfig(cfg)
				logger.Debug("job file loaded", "path", jobPath, "files", len(cfg.Files))
			} else if d, err = ws.Draft(ctx); err != nil {
				return err
			}

			if dryRun {
				problems, err := ws.Validate(ctx, d)
				if err != nil {
					return err
				}
				if len(problems) > 0 {
					return reportInvalid(out, model.NewValidationError("job is not valid", problems...))
				}
				fmt.Fprintf(out, "Dry-run: job is valid (%d file(s), %d analyses)\n", len(d.Files), len(d.Analyses))
				fmt.Fprintln(out, "No job submitted. Use without --dry-run to submit.")
				return nil
			}

			if jobPath != "" {
				err = ws.SubmitConfig(ctx, d.Submittable())
			} else {
				_, err = ws.Submit(ctx)
			}
			if err != nil {
				if verr, ok := model.AsValidation(err); ok {
					return reportInvalid(out, verr)
				}
				return err
			}
			fmt.Fprintf(out, "Job submitted: %d file(s), %d analyses. Results will be emailed to %s.\n",
				len(d.Files), len(d.Analyses), d.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&jobPath, "config", "f", "", "Submit the job described in this YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without submitting")
	return cmd
}

// reportInvalid prints each field error and returns verr.
func reportInvalid(w io.Writer, verr *model.APIError) error {
	fmt.Fprintln(w, "The job is not valid:")
	for _, d := range verr.Details {
		fmt.Fprintf(w, "  - %s\n", d)
	}
	return verr
}
