package cli

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/me/shennong/internal/mockserver"
	"github.com/me/shennong/pkg/model"
)

type testEnv struct {
	mock    *mockserver.Server
	url     string
	dataDir string
	user    model.User
}

// startTestServer starts a mock backend and points the bucket settings at it.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()
	schemaDoc, err := os.ReadFile(filepath.Join("..", "schema", "testdata", "processor-schema.json"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	mock := mockserver.New(schemaDoc, srvLogger)
	ts := httptest.NewServer(mock)
	t.Cleanup(ts.Close)

	t.Setenv("BUCKET_NAME", mockserver.Bucket)
	t.Setenv("SHENNONG_S3_ENDPOINT", ts.URL)
	t.Setenv("AWS_DEFAULT_REGION", "us-east-1")

	u := mock.AddUser("user@example.com", "secret", false)
	return &testEnv{mock: mock, url: ts.URL, dataDir: t.TempDir(), user: u}
}

func runCLI(t *testing.T, env *testEnv, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{
		"--server", env.url,
		"--data-dir", env.dataDir,
		"--config-file", filepath.Join(env.dataDir, "config.yaml"),
		"--log-level", "error",
	}, args...))

	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, env *testEnv, args ...string) string {
	t.Helper()
	out, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("%v: %v\noutput: %s", args, err, out)
	}
	return out
}

func login(t *testing.T, env *testEnv) {
	t.Helper()
	out := mustRun(t, env, "login", "--email", "user@example.com", "--password", "secret")
	if !strings.Contains(out, "Logged in as user@example.com") {
		t.Fatalf("login output: %s", out)
	}
}

func writeAudio(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, bytes.Repeat([]byte{'w'}, size), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoginWhoamiLogout(t *testing.T) {
	env := startTestServer(t)
	login(t, env)

	out := mustRun(t, env, "whoami")
	if !strings.Contains(out, "user@example.com") {
		t.Errorf("whoami output: %s", out)
	}

	info, err := os.Stat(filepath.Join(env.dataDir, "credentials.json"))
	if err != nil {
		t.Fatalf("session file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("session file mode = %v, want 0600", info.Mode().Perm())
	}

	mustRun(t, env, "logout")
	if _, err := runCLI(t, env, "whoami"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("whoami after logout err = %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := startTestServer(t)
	if _, err := runCLI(t, env, "login", "--email", "user@example.com", "--password", "nope"); err == nil {
		t.Fatal("expected login failure")
	}
}

func TestLogin_PromptsFromInput(t *testing.T) {
	env := startTestServer(t)
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader("user@example.com\n"))
	root.SetArgs([]string{"--server", env.url, "--data-dir", env.dataDir, "--log-level", "error",
		"--config-file", filepath.Join(env.dataDir, "none.yaml"),
		"login", "--password", "secret"})
	if err := root.Execute(); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out.String(), "Logged in as user@example.com") {
		t.Errorf("output: %s", out.String())
	}
}

func TestInvalidConfig(t *testing.T) {
	env := startTestServer(t)
	if _, err := runCLI(t, env, "--log-format", "xml", "whoami"); err == nil || !strings.Contains(err.Error(), "log format") {
		t.Errorf("err = %v, want log format error", err)
	}
}

func TestUploadRequiresLogin(t *testing.T) {
	env := startTestServer(t)
	path := writeAudio(t, t.TempDir(), "a.wav", 10)
	if _, err := runCLI(t, env, "upload", path); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("err = %v", err)
	}
}

func TestJobWorkflow(t *testing.T) {
	env := startTestServer(t)
	login(t, env)
	audio := t.TempDir()

	out := mustRun(t, env, "upload", "-q", writeAudio(t, audio, "a.wav", 1024), writeAudio(t, audio, "b.wav", 2048))
	if !strings.Contains(out, "Uploaded 2 file(s)") {
		t.Errorf("upload output: %s", out)
	}
	if env.mock.ObjectCount() != 2 {
		t.Errorf("objects = %d, want 2", env.mock.ObjectCount())
	}

	out = mustRun(t, env, "files")
	if !strings.Contains(out, "a.wav") || !strings.Contains(out, "b.wav") {
		t.Errorf("files output: %s", out)
	}

	out = mustRun(t, env, "schema", "mfcc")
	if !strings.Contains(out, "num_ceps") {
		t.Errorf("schema output: %s", out)
	}

	mustRun(t, env, "analysis", "add", "mfcc")
	mustRun(t, env, "analysis", "set", "mfcc", "num_ceps", "20")
	mustRun(t, env, "analysis", "pp", "mfcc", "cmvn")
	mustRun(t, env, "set", "--res", ".csv", "--channel", "2")

	if _, err := runCLI(t, env, "analysis", "set", "mfcc", "num_ceps", "many"); err == nil {
		t.Error("non-numeric value should be rejected")
	}
	if _, err := runCLI(t, env, "analysis", "add", "nope"); err == nil {
		t.Error("unknown analysis should be rejected")
	}

	out = mustRun(t, env, "show")
	for _, want := range []string{"Channel:  2", "Results:  .csv", "a.wav", "mfcc", "cmvn"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q: %s", want, out)
		}
	}

	out = mustRun(t, env, "submit", "--dry-run")
	if !strings.Contains(out, "job is valid") {
		t.Errorf("dry-run output: %s", out)
	}
	if len(env.mock.Jobs()) != 0 {
		t.Fatal("dry-run submitted a job")
	}

	out = mustRun(t, env, "submit")
	if !strings.Contains(out, "Job submitted: 2 file(s), 1 analyses") {
		t.Errorf("submit output: %s", out)
	}
	jobs := env.mock.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	cfg := jobs[0].Taskmeta.Kwargs.Config
	if cfg.Channel != 2 || cfg.Res != ".csv" || len(cfg.Files) != 2 {
		t.Errorf("submitted config = %+v", cfg)
	}
	if got := cfg.Analyses["mfcc"].InitArgs["num_ceps"]; got != 20.0 {
		t.Errorf("num_ceps = %v, want 20", got)
	}

	out = mustRun(t, env, "show")
	if !strings.Contains(out, "Files:    0") || !strings.Contains(out, "Analyses: none") {
		t.Errorf("draft should be reset after submit: %s", out)
	}
}

func TestSubmit_Invalid(t *testing.T) {
	env := startTestServer(t)
	login(t, env)

	out, err := runCLI(t, env, "submit")
	if _, ok := model.AsValidation(err); !ok {
		t.Fatalf("err = %v, want validation error", err)
	}
	if !strings.Contains(out, "Files[] must contain at least one file") ||
		!strings.Contains(out, "analyses field is required") {
		t.Errorf("output: %s", out)
	}
}

func TestSubmit_JobFile(t *testing.T) {
	env := startTestServer(t)
	login(t, env)

	jobPath := filepath.Join(t.TempDir(), "job.yml")
	job := `files: [batch/a.wav, batch/b.wav]
res: .pkl
analyses:
  pitch_kaldi:
    init_args:
      min_f0: 50
      max_f0: 400
    postprocessors: [pitch_kaldi]
`
	if err := os.WriteFile(jobPath, []byte(job), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, env, "submit", "--config", jobPath)
	if !strings.Contains(out, "Job submitted: 2 file(s)") {
		t.Errorf("output: %s", out)
	}
	jobs := env.mock.Jobs()
	if len(jobs) != 1 || jobs[0].Taskmeta.Kwargs.Config.Email != "user@example.com" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestUploadFailuresAndRetry(t *testing.T) {
	env := startTestServer(t)
	login(t, env)
	env.mock.RejectUpload = func(key string) bool { return strings.HasSuffix(key, "/bad.wav") }
	audio := t.TempDir()

	out := mustRun(t, env, "upload", "-q", writeAudio(t, audio, "good.wav", 10), writeAudio(t, audio, "bad.wav", 10))
	if !strings.Contains(out, "Failed 1 file(s)") || !strings.Contains(out, "bad.wav") {
		t.Errorf("upload output: %s", out)
	}

	out = mustRun(t, env, "failures")
	if !strings.Contains(out, "bad.wav") || !strings.Contains(out, string(model.UploadFailure)) {
		t.Errorf("failures output: %s", out)
	}

	env.mock.RejectUpload = nil
	out = mustRun(t, env, "retry", "-q", "bad.wav")
	if !strings.Contains(out, "Uploaded 1 file(s)") {
		t.Errorf("retry output: %s", out)
	}
	out = mustRun(t, env, "failures")
	if !strings.Contains(out, "No failed uploads.") {
		t.Errorf("failures after retry: %s", out)
	}
	if _, err := runCLI(t, env, "failures", "rm", "bad.wav"); err == nil {
		t.Error("dismissing an absent failure should fail")
	}
}

func TestFilesRemove(t *testing.T) {
	env := startTestServer(t)
	login(t, env)
	mustRun(t, env, "upload", "-q", writeAudio(t, t.TempDir(), "a.wav", 10))

	var key string
	for _, line := range strings.Split(mustRun(t, env, "files"), "\n") {
		if strings.HasPrefix(line, "a.wav") {
			fields := strings.Fields(line)
			key = fields[len(fields)-1]
		}
	}
	if key == "" {
		t.Fatal("uploaded key not listed")
	}

	mustRun(t, env, "files", "rm", "--purge", key)
	if _, ok := env.mock.Object(key); ok {
		t.Error("object should be purged")
	}
	if out := mustRun(t, env, "files"); !strings.Contains(out, "No files uploaded.") {
		t.Errorf("files output: %s", out)
	}
}

func TestJobsAndRetry(t *testing.T) {
	env := startTestServer(t)
	login(t, env)

	done := env.mock.AddJob(env.user.ID, model.JobConfig{
		Channel:  1,
		Email:    "user@example.com",
		Files:    []string{"old/x.wav"},
		Res:      ".pkl",
		Analyses: map[string]model.AnalysisSelection{"mfcc": {InitArgs: map[string]any{"num_ceps": 13.0}, Postprocessors: []string{"cmvn"}}},
	}, model.JobStateSuccess)

	out := mustRun(t, env, "jobs")
	if !strings.Contains(out, "SUCCESS") {
		t.Errorf("jobs output: %s", out)
	}

	id := strconv.Itoa(done.ID)
	out = mustRun(t, env, "job", id)
	if !strings.Contains(out, "old/x.wav") || !strings.Contains(out, "mfcc + cmvn") {
		t.Errorf("job output: %s", out)
	}

	out = mustRun(t, env, "job", "retry", id)
	if !strings.Contains(out, "Draft loaded from job "+id) {
		t.Errorf("retry output: %s", out)
	}
	if out := mustRun(t, env, "show"); !strings.Contains(out, "x.wav") {
		t.Errorf("show after retry: %s", out)
	}

	if _, err := runCLI(t, env, "job", "abc"); err == nil {
		t.Error("non-numeric job id should fail")
	}
}

func TestAdminListings(t *testing.T) {
	env := startTestServer(t)
	env.mock.AddUser("admin@example.com", "root", true)
	login(t, env)

	if _, err := runCLI(t, env, "users"); err == nil {
		t.Error("non-admin should not list users")
	}

	mustRun(t, env, "logout")
	mustRun(t, env, "login", "--email", "admin@example.com", "--password", "root")
	out := mustRun(t, env, "users")
	if !strings.Contains(out, "user@example.com") || !strings.Contains(out, "admin") {
		t.Errorf("users output: %s", out)
	}
	if _, err := runCLI(t, env, "jobs", "--all"); err != nil {
		t.Errorf("jobs --all: %v", err)
	}
}

func TestRegisterAndVerify(t *testing.T) {
	env := startTestServer(t)

	out := mustRun(t, env, "register", "--email", "new@example.com", "--password", "pw")
	if !strings.Contains(out, "verification code was sent to new@example.com") {
		t.Errorf("register output: %s", out)
	}
	out = mustRun(t, env, "verify", "new@example.com", mockserver.VerificationCode)
	if !strings.Contains(out, "Logged in as new@example.com") {
		t.Errorf("verify output: %s", out)
	}

	out = mustRun(t, env, "account", "update", "--username", "newbie")
	if !strings.Contains(out, "newbie") {
		t.Errorf("account update output: %s", out)
	}
	mustRun(t, env, "reset-password", "new@example.com")
}
