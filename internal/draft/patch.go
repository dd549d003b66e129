package draft

import (
	"fmt"
	"path"
	"strings"

	"github.com/me/shennong/internal/schema"
	"github.com/me/shennong/pkg/model"
)

// The builders below compute patches from the current draft. Because the
// reducer merges shallowly, each one copies the nested structure it changes.

// SetChannel patches the stereo channel to keep.
func SetChannel(ch int) Patch {
	return Patch{Channel: &ch}
}

// SetRes patches the output format.
func SetRes(res string) Patch {
	return Patch{Res: &res}
}

// SetEmail patches the notification address.
func SetEmail(email string) Patch {
	return Patch{Email: &email}
}

// AddAnalysis enables the group's analysis with its default selection.
// Enabling an analysis that is already selected resets it to defaults.
func AddAnalysis(d Draft, g *schema.Group) Patch {
	analyses := cloneAnalyses(d.Analyses)
	analyses[g.Name()] = g.DefaultSelection()
	return Patch{Analyses: analyses}
}

// RemoveAnalysis drops an analysis and its configuration.
func RemoveAnalysis(d Draft, name string) Patch {
	analyses := cloneAnalyses(d.Analyses)
	delete(analyses, name)
	return Patch{Analyses: analyses}
}

// SetInitArg sets one constructor argument of an enabled analysis.
func SetInitArg(d Draft, analysis, arg string, value any) (Patch, error) {
	sel, ok := d.Analyses[analysis]
	if !ok {
		return Patch{}, fmt.Errorf("analysis %s is not selected", analysis)
	}
	sel = sel.Clone()
	sel.InitArgs[arg] = value

	analyses := cloneAnalyses(d.Analyses)
	analyses[analysis] = sel
	return Patch{Analyses: analyses}, nil
}

// SetPostprocessor toggles a postprocessor on an enabled analysis. Required
// postprocessors cannot be turned off.
func SetPostprocessor(d Draft, g *schema.Group, pp string, enabled bool) (Patch, error) {
	sel, ok := d.Analyses[g.Name()]
	if !ok {
		return Patch{}, fmt.Errorf("analysis %s is not selected", g.Name())
	}
	if !g.AllowsPostprocessor(pp) {
		return Patch{}, fmt.Errorf("postprocessor %s is not valid for %s", pp, g.Name())
	}
	if !enabled && g.IsRequired(pp) {
		return Patch{}, fmt.Errorf("postprocessor %s is required by %s", pp, g.Name())
	}

	analyses := cloneAnalyses(d.Analyses)
	analyses[g.Name()] = sel.WithPostprocessor(pp, enabled)
	return Patch{Analyses: analyses}, nil
}

// AppendFiles adds newly uploaded files after the existing ones.
func AppendFiles(d Draft, refs []model.UploadRef) Patch {
	files := make([]model.UploadRef, 0, len(d.Files)+len(refs))
	files = append(files, d.Files...)
	files = append(files, refs...)
	return Patch{Files: files}
}

// RemoveFile drops the file stored under remoteKey. The second result is
// false when no such file is in the draft.
func RemoveFile(d Draft, remoteKey string) (Patch, bool) {
	files := make([]model.UploadRef, 0, len(d.Files))
	found := false
	for _, f := range d.Files {
		if f.RemoteKey == remoteKey {
			found = true
			continue
		}
		files = append(files, f)
	}
	return Patch{Files: files}, found
}

// FromJob builds a patch that reloads a previous job's configuration so it
// can be modified and resubmitted. The email is left as is. File sizes are
// unknown and recorded as zero.
func FromJob(job *model.Job) (Patch, error) {
	if !job.CanRetry || job.Taskmeta == nil || job.Taskmeta.Kwargs == nil {
		return Patch{}, fmt.Errorf("job %d cannot be retried", job.ID)
	}
	cfg := job.Taskmeta.Kwargs.Config

	channel := cfg.Channel
	res := cfg.Res
	return Patch{
		Channel:  &channel,
		Res:      &res,
		Files:    refsFromKeys(cfg.Files),
		Analyses: cloneAnalyses(cfg.Analyses),
	}, nil
}

// refsFromKeys names each remote key after its last path element; keys
// written on Windows may use backslashes.
func refsFromKeys(keys []string) []model.UploadRef {
	refs := make([]model.UploadRef, len(keys))
	for i, key := range keys {
		refs[i] = model.UploadRef{
			RemoteKey: key,
			Name:      path.Base(strings.ReplaceAll(key, `\`, "/")),
		}
	}
	return refs
}

func cloneAnalyses(in map[string]model.AnalysisSelection) map[string]model.AnalysisSelection {
	out := make(map[string]model.AnalysisSelection, len(in)+1)
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
