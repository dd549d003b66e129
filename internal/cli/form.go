package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/shennong/internal/draft"
	"github.com/me/shennong/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "schema [analysis...]",
		Short: "List the available analyses and their arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeWS, err := openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeWS()

			var cat *schema.Catalog
			if refresh {
				cat, err = ws.RefreshCatalog(cmd.Context())
			} else {
				cat, err = ws.Catalog(cmd.Context())
			}
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				names = cat.Names()
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				g, ok := cat.Group(name)
				if !ok {
					return fmt.Errorf("unknown analysis %q", name)
				}
				if err := renderGroup(out, g, nil); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch the schema even if the cached copy is fresh")
	return cmd
}

// renderGroup prints an analysis with its arguments. values holds the
// current init args; nil shows the defaults.
func renderGroup(w io.Writer, g *schema.Group, values map[string]any) error {
	fmt.Fprintf(w, "%s (%s)\n", g.Analysis.Title(), g.Name())
	for _, f := range g.InitArgs {
		fmt.Fprint(w, "  ")
		if err := schema.Render(w, f, values[f.Info().Name]); err != nil {
			return err
		}
	}
	if len(g.Postprocessors) > 0 {
		pps := make([]string, len(g.Postprocessors))
		for i, p := range g.Postprocessors {
			pps[i] = p.Name
			if g.IsRequired(p.Name) {
				pps[i] += " (required)"
			}
		}
		fmt.Fprintf(w, "  postprocessors: %s\n", strings.Join(pps, ", "))
	}
	return nil
}

func newSetCmd() *cobra.Command {
	var channel int
	var res, email string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the job's global options",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p draft.Patch
			if cmd.Flags().Changed("channel") {
				p = draft.SetChannel(channel)
			}
			if cmd.Flags().Changed("res") {
				p.Res = draft.SetRes(res).Res
			}
			if cmd.Flags().Changed("email") {
				p.Email = draft.SetEmail(email).Email
			}
			if p.Channel == nil && p.Res == nil && p.Email == nil {
				return fmt.Errorf("nothing to set: pass --channel, --res or --email")
			}
			return dispatch(cmd, draft.Update(p))
		},
	}

	cmd.Flags().IntVar(&channel, "channel", draft.DefaultChannel, "Audio channel to analyse (1 or 2)")
	cmd.Flags().StringVar(&res, "res", draft.DefaultRes, "Result format (.pkl or .csv)")
	cmd.Flags().StringVar(&email, "email", "", "Email notified when the job finishes")
	return cmd
}

func newAnalysisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Choose analyses and their arguments",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <analysis>",
			Short: "Enable an analysis with default arguments",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return editAnalysis(cmd, args[0], func(d draft.Draft, g *schema.Group) (draft.Patch, error) {
					return draft.AddAnalysis(d, g), nil
				})
			},
		},
		&cobra.Command{
			Use:   "rm <analysis>",
			Short: "Disable an analysis",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return editAnalysis(cmd, args[0], func(d draft.Draft, g *schema.Group) (draft.Patch, error) {
					if _, ok := d.Analyses[g.Name()]; !ok {
						return draft.Patch{}, fmt.Errorf("analysis %s is not enabled", g.Name())
					}
					return draft.RemoveAnalysis(d, g.Name()), nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <analysis> <arg> <value>",
			Short: "Set an analysis argument",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return editAnalysis(cmd, args[0], func(d draft.Draft, g *schema.Group) (draft.Patch, error) {
					f, ok := g.Arg(args[1])
					if !ok {
						return draft.Patch{}, fmt.Errorf("%s has no argument %q", g.Name(), args[1])
					}
					var p draft.Patch
					var setErr error
					b := schema.Binding{Field: f, Update: func(v any) {
						p, setErr = draft.SetInitArg(d, g.Name(), args[1], v)
					}}
					if err := b.Set(args[2]); err != nil {
						return draft.Patch{}, fmt.Errorf("%s.%s: %w", g.Name(), args[1], err)
					}
					return p, setErr
				})
			},
		},
		newAnalysisPPCmd(),
	)
	return cmd
}

func newAnalysisPPCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "pp <analysis> <postprocessor>",
		Short: "Select (or with --off, deselect) a postprocessor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editAnalysis(cmd, args[0], func(d draft.Draft, g *schema.Group) (draft.Patch, error) {
				return draft.SetPostprocessor(d, g, args[1], !off)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Deselect the postprocessor")
	return cmd
}

// editAnalysis looks up the named analysis and dispatches the patch build
// returns.
func editAnalysis(cmd *cobra.Command, name string, build func(draft.Draft, *schema.Group) (draft.Patch, error)) error {
	ws, closeWS, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer closeWS()

	cat, err := ws.Catalog(cmd.Context())
	if err != nil {
		return err
	}
	g, ok := cat.Group(name)
	if !ok {
		return fmt.Errorf("unknown analysis %q (see `shennong schema`)", name)
	}
	d, err := ws.Draft(cmd.Context())
	if err != nil {
		return err
	}
	p, err := build(d, g)
	if err != nil {
		return err
	}
	_, err = ws.Dispatch(cmd.Context(), draft.Update(p))
	return err
}

func dispatch(cmd *cobra.Command, a draft.Action) error {
	ws, closeWS, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer closeWS()
	_, err = ws.Dispatch(cmd.Context(), a)
	return err
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the job being prepared",
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
			fmt.Fprintf(out, "Email:    %s\n", d.Email)
			fmt.Fprintf(out, "Channel:  %d\n", d.Channel)
			fmt.Fprintf(out, "Results:  %s\n", d.Res)
			fmt.Fprintf(out, "Files:    %d (%s)\n", len(d.Files), humanize.IBytes(uint64(d.UploadedBytes())))
			for _, f := range d.Files {
				fmt.Fprintf(out, "  - %s\n", f.Name)
			}

			if len(d.Analyses) == 0 {
				fmt.Fprintln(out, "Analyses: none")
				return nil
			}
			fmt.Fprintln(out, "Analyses:")
			cat, err := ws.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(d.Analyses))
			for name := range d.Analyses {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				sel := d.Analyses[name]
				g, ok := cat.Group(name)
				if !ok {
					fmt.Fprintf(out, "%s (not in schema)\n", name)
					continue
				}
				if err := renderGroup(out, g, sel.InitArgs); err != nil {
					return err
				}
				fmt.Fprintf(out, "  selected: %s\n", strings.Join(sel.Postprocessors, ", "))
			}
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset the job to its defaults, keeping the email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dispatch(cmd, draft.Clear()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Draft cleared.")
			return nil
		},
	}
}

// parseID converts a numeric command argument.
func parseID(kind, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}
