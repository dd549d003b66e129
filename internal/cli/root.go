package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/shennong/internal/api"
	"github.com/me/shennong/internal/config"
	"github.com/me/shennong/internal/logging"
	"github.com/me/shennong/internal/objectstore"
	"github.com/me/shennong/internal/session"
	"github.com/me/shennong/internal/store"
	"github.com/me/shennong/internal/upload"
	"github.com/me/shennong/internal/workspace"
	"github.com/me/shennong/pkg/model"
)

var (
	flagConfig    string
	flagServer    string
	flagDataDir   string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg      config.ClientConfig
	logger   *slog.Logger
	sessions *session.FileStore
	client   *api.Client
)

// NewRootCmd creates the root cobra command for the shennong CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shennong",
		Short: "Shennong: speech feature extraction jobs",
		Long:  "shennong uploads audio files, builds an analysis job and submits it to the Shennong backend.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config-file", config.DefaultPath(), "Client config file")
	pf.StringVar(&flagServer, "server", "", "Shennong server URL (or SHENNONG_SERVER env)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory for the session and workspace (default ~/.shennong)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newRegisterCmd(),
		newVerifyCmd(),
		newResetPasswordCmd(),
		newAccountCmd(),
		newSchemaCmd(),
		newUploadCmd(),
		newRetryCmd(),
		newFilesCmd(),
		newFailuresCmd(),
		newSetCmd(),
		newAnalysisCmd(),
		newShowCmd(),
		newClearCmd(),
		newSubmitCmd(),
		newJobsCmd(),
		newJobCmd(),
		newUsersCmd(),
	)

	return root
}

// setup resolves the configuration (defaults, file, environment, flags) and
// builds the logger, session store and API client shared by all commands.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)

	if flagServer != "" {
		cfg.Server = flagServer
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger = logging.NewLoggerWithWriter(level, cfg.LogFormat, cmd.ErrOrStderr())
	sessions = session.NewFileStore(cfg.DataDir)
	client = api.NewClient(cfg.Server, sessions, cfg.Timeout, logger)
	return nil
}

// currentUser returns the signed-in user from the session file.
func currentUser() (*model.User, error) {
	u := sessions.User()
	if u == nil || sessions.Token() == "" {
		return nil, fmt.Errorf("not logged in: run `shennong login` first")
	}
	return u, nil
}

// openWorkspace opens the local workspace for the signed-in user. The
// returned close function releases the database.
func openWorkspace(ctx context.Context) (*workspace.Workspace, func(), error) {
	u, err := currentUser()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("migrate workspace: %w", err)
	}

	objects := objectstore.S3Factory(objectstore.S3Config{
		Bucket:   cfg.Bucket,
		Region:   cfg.Region,
		Endpoint: cfg.S3Endpoint,
	}, logger)
	coord := upload.NewCoordinator(client, objects, logger)

	ws := workspace.New(st, client, coord, objects, logger)
	ws.Email = u.Email
	ws.SchemaTTL = cfg.SchemaTTL
	return ws, func() { st.Close() }, nil
}
