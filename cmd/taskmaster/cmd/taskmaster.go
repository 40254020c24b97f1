package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"taskmaster/backend"
	"taskmaster/backend/file"
	"taskmaster/backend/rest"
	"taskmaster/backend/sqlite"
	"taskmaster/internal/cache"
	"taskmaster/internal/cli/prompt"
	"taskmaster/internal/config"
	"taskmaster/internal/credentials"
	"taskmaster/internal/recent"
	"taskmaster/internal/shutdown"
	"taskmaster/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds per-invocation settings. The path and hook fields override
// the configuration file and are used by tests.
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string // Path to config.yaml
	DBPath       string // Path to database file
	PostsPath    string // Path to posts file
	PrefsPath    string // Path to TUI preferences

	Stdin   io.Reader           // Defaults to os.Stdin
	Keyring credentials.Keyring // Defaults to the system keyring
	Now     func() time.Time    // Clock for relative times

	// Shutdown stops serve when triggered. A new manager listening for
	// SIGINT/SIGTERM is used when nil.
	Shutdown *shutdown.Manager
	// OnServe is called with the listening address once serve accepts connections.
	OnServe func(addr string)
}

// app is the state shared by every command of one invocation
type app struct {
	cfg    *Config
	conf   *config.Config
	stdout io.Writer
	stderr io.Writer
	json   bool

	recentTasks *recent.Tracker[backend.Task]
	recentPosts *recent.Tracker[backend.Post]
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	a := &app{cfg: cfg, stdout: stdout, stderr: stderr}
	rootCmd := newRootCmd(a)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if a.json || containsJSONFlag(args) || cfg.OutputFormat == "json" {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if a.noPrompt() {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewTaskMaster creates the root command with injectable IO
func NewTaskMaster(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}
	return newRootCmd(&app{cfg: cfg, stdout: stdout, stderr: stderr})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "taskmaster",
		Short:   "Projects, tasks and posts from the command line",
		Long:    "taskmaster manages projects and tasks on a SQLite or REST backend, and blog posts in a local file.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("backend", "", "Task backend to use (sqlite, rest)")
	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	cmd.AddCommand(newProjectCmd(a))
	cmd.AddCommand(newTaskCmd(a))
	cmd.AddCommand(newRecentCmd(a))
	cmd.AddCommand(newPostCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newTUICmd(a))
	cmd.AddCommand(newCredentialsCmd(a))

	return cmd
}

// setup loads the configuration and applies flag overrides
func (a *app) setup(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = a.cfg.ConfigPath
	}
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	noPrompt, _ := cmd.Flags().GetBool("no-prompt")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	backendName, _ := cmd.Flags().GetString("backend")

	format := a.cfg.OutputFormat
	if jsonOutput {
		format = "json"
	}
	conf.ApplyFlags(noPrompt || a.cfg.NoPrompt, format, backendName, verbose || a.cfg.Verbose)
	if a.cfg.DBPath != "" {
		conf.Backends.SQLite.Path = a.cfg.DBPath
	}
	if a.cfg.PostsPath != "" {
		conf.Posts.Path = a.cfg.PostsPath
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	utils.SetVerboseMode(conf.Logging.Verbose)
	a.conf = conf
	a.json = conf.OutputFormat == "json"
	a.recentTasks = recent.New[backend.Task](conf.GetRecentCapacity())
	a.recentPosts = recent.New[backend.Post](conf.GetRecentCapacity())
	return nil
}

func (a *app) noPrompt() bool {
	if a.conf != nil {
		return a.conf.NoPrompt
	}
	return a.cfg.NoPrompt
}

// stdin returns the prompt input and whether prompts may be shown on it
func (a *app) stdin() (io.Reader, bool) {
	if a.cfg.Stdin != nil {
		return a.cfg.Stdin, !a.noPrompt()
	}
	return os.Stdin, !a.noPrompt() && prompt.IsInteractive(os.Stdin)
}

func (a *app) now() time.Time {
	if a.cfg.Now != nil {
		return a.cfg.Now()
	}
	return time.Now()
}

func (a *app) credentials() *credentials.Store {
	if a.cfg.Keyring != nil {
		return credentials.NewStore(credentials.WithKeyring(a.cfg.Keyring))
	}
	return credentials.NewStore()
}

// openTaskStore opens the configured task backend
func (a *app) openTaskStore(ctx context.Context) (backend.TaskStore, error) {
	switch a.conf.DefaultBackend {
	case "rest":
		return a.openREST(ctx)
	case "sqlite":
		path := a.conf.GetDatabasePath()
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("could not create data directory: %w", err)
			}
		}
		return sqlite.New(path)
	default:
		return nil, utils.ErrBackendNotConfigured(a.conf.DefaultBackend)
	}
}

func (a *app) openREST(ctx context.Context) (backend.TaskStore, error) {
	rc := a.conf.Backends.REST
	restCfg := rest.ConfigFromEnv()
	if rc.BaseURL != "" {
		restCfg.BaseURL = rc.BaseURL
	}
	restCfg.Username = rc.Username
	restCfg.UseKeyring = rc.UseKeyring
	restCfg.Timeout = a.conf.GetRESTTimeout()
	restCfg.MaxRetries = rc.MaxRetries

	if rc.UseKeyring {
		if rc.Username == "" {
			return nil, utils.ErrBackendNotConfigured("rest username")
		}
		tok, err := a.credentials().Lookup(ctx, credentials.Account{Backend: "rest", Username: rc.Username})
		if err != nil {
			return nil, err
		}
		if !tok.Found() {
			return nil, utils.ErrCredentialsNotFound("rest", rc.Username)
		}
		restCfg.APIToken = tok.Value
		utils.Debugf("rest token for %s loaded from %s", rc.Username, tok.Source)
	}
	return rest.New(restCfg)
}

// openPostStore opens the posts file
func (a *app) openPostStore() (*file.Backend, error) {
	return file.New(file.Config{
		FilePath: a.conf.Posts.Path,
		Latency:  a.conf.GetPostsLatency(),
	})
}

type taskCache = cache.Cache[backend.Task, backend.NewTask, backend.TaskPatch]
type postCache = cache.Cache[backend.Post, backend.NewPost, backend.PostPatch]

// projectCache returns the optimistic cache over one project's tasks
func (a *app) projectCache(store backend.TaskStore, projectID string) *taskCache {
	return cache.New(backend.ProjectTasks(store, projectID),
		cache.TaskOptions("tasks:"+projectID, a.recentTasks, a.conf.GetMutationTimeout()))
}

// taskGroup returns one task cache per project
func (a *app) taskGroup(store backend.TaskStore) *cache.Group[backend.Task, backend.NewTask, backend.TaskPatch] {
	return cache.NewGroup(func(projectID string) *taskCache {
		return a.projectCache(store, projectID)
	})
}

// pageCache returns the optimistic cache over one page of posts
func (a *app) pageCache(store backend.PostStore, page, pageSize int) *postCache {
	return cache.New(backend.Posts(store, page, pageSize),
		cache.PostOptions(fmt.Sprintf("posts:%d", page), a.recentPosts, a.conf.GetMutationTimeout()))
}

// describe maps store errors onto user-facing errors. notFound may be nil
// when a missing record needs no special wording.
func describe(err error, notFound func() error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backend.ErrNotFound) && notFound != nil:
		return notFound()
	case errors.Is(err, rest.ErrUnauthorized):
		return utils.ErrAuthenticationFailed("rest")
	}
	return err
}

// done emits the ACTION_COMPLETED result code in no-prompt mode
func (a *app) done() {
	if !a.json && a.noPrompt() {
		_, _ = fmt.Fprintln(a.stdout, ResultActionCompleted)
	}
}

// info emits the INFO_ONLY result code in no-prompt mode
func (a *app) info() {
	if !a.json && a.noPrompt() {
		_, _ = fmt.Fprintln(a.stdout, ResultInfoOnly)
	}
}

type actionResponse struct {
	Action  string           `json:"action"`
	Project *backend.Project `json:"project,omitempty"`
	Task    *backend.Task    `json:"task,omitempty"`
	Post    *backend.Post    `json:"post,omitempty"`
	Result  string           `json:"result"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// writeJSON outputs v as one line of JSON
func writeJSON(w io.Writer, v any) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, string(jsonBytes))
	return nil
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}

	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}
