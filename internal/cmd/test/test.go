// Package test implements the test command: create one agent container,
// start it and wait for the verdict.
package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/shlex"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/schmitthub/dockercloud/internal/agent"
	"github.com/schmitthub/dockercloud/internal/clock"
	"github.com/schmitthub/dockercloud/internal/cmdutil"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/containertest"
	"github.com/schmitthub/dockercloud/internal/docker"
	"github.com/schmitthub/dockercloud/internal/iostreams"
	"github.com/schmitthub/dockercloud/internal/logger"
	"github.com/schmitthub/dockercloud/internal/resolver"
	"github.com/schmitthub/dockercloud/internal/signals"
)

// TestOptions holds options for the test command.
type TestOptions struct {
	IOStreams    *iostreams.IOStreams
	Settings     func() (*config.Settings, error)
	ConfigLoader func() *config.Loader
	Engines      func() docker.FacadeFactory

	// Agents reports agent connections. Nil uses an empty registry, so
	// without --skip-agent-check the test waits for an agent that some
	// other component registers.
	Agents *agent.Registry
	Clock  clock.Clock

	Image                 string
	Profile               string
	DefaultImage          string
	Pull                  bool
	VerifyRemote          bool
	SpecFile              string
	Cmd                   string
	ServerURL             string
	RegistryUser          string
	RegistryPasswordStdin bool
	SkipAgentCheck        bool
	AgentTimeout          time.Duration
}

// NewCmdTest creates the test command.
func NewCmdTest(f *cmdutil.Factory, runF func(context.Context, *TestOptions) error) *cobra.Command {
	opts := &TestOptions{
		IOStreams:    f.IOStreams,
		Settings:     f.Settings,
		ConfigLoader: f.ConfigLoader,
		Engines:      f.Engines,
	}

	cmd := &cobra.Command{
		Use:   "test [IMAGE]",
		Short: "Create, start and verify one agent container",
		Long: `Runs a container test against the configured Docker engine.

The test moves through three phases:
  CREATE  connect to the engine, resolve the image, pull it if requested,
          create the container
  START   start the container and wait for its agent to connect
  VERIFY  confirm the agent is connected and the container still runs

Agent connections are tracked by an in-process registry. This command does
not run an agent endpoint, so nothing registers in it: without
--skip-agent-check the START phase waits for --agent-timeout and then
fails. Pass --skip-agent-check to treat a running container as connected.

Each status change is printed as it happens. The container is removed when
the test finishes or fails or is interrupted.`,
		Example: `  # Test an image without waiting for an agent to connect
  dockercloud test alpine --skip-agent-check --cmd "sleep 300"

  # Pull first, with a container spec file
  dockercloud test --pull --spec agent.yaml registry.example.com/ci/agent:1.4

  # Authenticate the pull
  echo "$TOKEN" | dockercloud test --pull --registry-user ci --registry-password-stdin private.example.com/agent`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Image = args[0]
			}
			if opts.Image == "" && opts.DefaultImage == "" {
				return cmdutil.FlagErrorf("an image argument or --default-image is required")
			}
			if opts.RegistryPasswordStdin && opts.RegistryUser == "" {
				return cmdutil.FlagErrorf("--registry-password-stdin requires --registry-user")
			}
			if opts.AgentTimeout < 0 {
				return cmdutil.FlagErrorf("--agent-timeout must not be negative")
			}
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return testRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "Profile name used in the container name and labels")
	cmd.Flags().StringVar(&opts.DefaultImage, "default-image", "", "Image to use when none is given")
	cmd.Flags().BoolVar(&opts.Pull, "pull", false, "Pull the image before creating the container")
	cmd.Flags().BoolVar(&opts.VerifyRemote, "verify-remote", false, "Check the image exists in its registry before creating")
	cmd.Flags().StringVarP(&opts.SpecFile, "spec", "f", "", "YAML file describing the container (env, ports, binds, limits)")
	cmd.Flags().StringVar(&opts.Cmd, "cmd", "", "Command to run in the container (overrides the spec file)")
	cmd.Flags().StringVar(&opts.ServerURL, "server-url", "", "Server URL published to the agent (overrides server_url)")
	cmd.Flags().StringVarP(&opts.RegistryUser, "registry-user", "u", "", "Registry username for the pull")
	cmd.Flags().BoolVar(&opts.RegistryPasswordStdin, "registry-password-stdin", false, "Read the registry password from stdin")
	cmd.Flags().BoolVar(&opts.SkipAgentCheck, "skip-agent-check", false, "Treat the agent as connected as soon as the container runs")
	cmd.Flags().DurationVar(&opts.AgentTimeout, "agent-timeout", 0, "How long to wait for the agent (default from test.agent_wait_timeout)")

	return cmd
}

func testRun(ctx context.Context, opts *TestOptions) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	settings, err := opts.Settings()
	if err != nil {
		return err
	}

	img, err := imageConfig(opts)
	if err != nil {
		return err
	}

	registry := opts.Agents
	if registry == nil {
		registry = agent.NewRegistry()
	}
	detected := agent.Predicate(registry.IsTestAgentDetected)
	if opts.SkipAgentCheck {
		detected = agent.Always
	}

	mopts := containertest.OptionsFromSettings(settings)
	mopts.Resolver = resolver.NewRegistryResolver(opts.DefaultImage, opts.VerifyRemote)
	mopts.Factory = opts.Engines()
	mopts.AgentDetected = detected
	mopts.Clock = opts.Clock
	if opts.AgentTimeout > 0 {
		mopts.AgentWaitTimeout = opts.AgentTimeout
	}

	mgr, err := containertest.NewManager(mopts)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Dispose(); err != nil {
			logger.Warn().Err(err).Msg("disposing container tests")
		}
	}()

	if opts.ConfigLoader != nil && settings != nil {
		if loader := opts.ConfigLoader(); loader != nil && loader.ConfigFileUsed() != "" {
			loader.Watch(func(s *config.Settings, err error) {
				if err != nil {
					logger.Warn().Err(err).Msg("ignoring invalid config change")
					return
				}
				if opts.AgentTimeout > 0 {
					s.Test.AgentWaitTimeout = opts.AgentTimeout
				}
				mgr.Reconfigure(s.Test)
			})
		}
	}

	ctx, stop := signals.SetupSignalContext(ctx, func(os.Signal) {
		fmt.Fprintln(ios.ErrOut, cs.Yellow("Interrupted, removing the container..."))
	})
	defer stop()

	cloud := config.CloudConfig{
		ClientID:  uuid.New(),
		ServerURL: opts.ServerURL,
		Engine:    settings.Engine,
	}
	if cloud.ServerURL == "" {
		cloud.ServerURL = settings.ServerURL
	}

	id, err := mgr.CreateTest(ctx, cloud, img)
	if err != nil {
		return err
	}

	// Notify runs on the manager's delivery goroutine; hand messages over
	// without blocking it once we have stopped reading.
	msgs := make(chan containertest.StatusMsg, 16)
	done := make(chan struct{})
	defer close(done)
	err = mgr.SetListener(id, containertest.ListenerFuncs{
		NotifyFn: func(msg containertest.StatusMsg) {
			select {
			case msgs <- msg:
			case <-done:
			}
		},
	})
	if err != nil {
		return err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	watch := clock.StartStopwatch(clk)
	printer := &statusPrinter{out: ios.Out, cs: cs}
	started := false

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("test %s interrupted: %w", id, ctx.Err())
		case msg := <-msgs:
			printer.print(msg, watch.Elapsed())

			if msg.Phase == containertest.PhaseCreate && msg.Status == containertest.StatusSuccess && !started {
				started = true
				if err := mgr.StartTestContainer(id); err != nil {
					return err
				}
			}

			if msg.Status == containertest.StatusFailure {
				fmt.Fprintf(ios.ErrOut, "%s Test failed in %s: %s\n", cs.FailureIcon(), msg.Phase, failureText(msg))
				var dErr *docker.DockerError
				if errors.As(msg.Failure, &dErr) {
					fmt.Fprint(ios.ErrOut, dErr.FormatUserError())
				}
				return cmdutil.SilentError
			}
			if msg.Terminal() {
				name := msg.ContainerID
				if inst, err := mgr.Instance(id); err == nil && inst.ContainerName() != "" {
					name = inst.ContainerName()
				}
				fmt.Fprintf(ios.Out, "%s Container %s verified in %s\n",
					cs.SuccessIcon(), cs.Bold(logger.ShortID(name)), strings.ToLower(units.HumanDuration(watch.Elapsed())))
				return nil
			}
		}
	}
}

// imageConfig assembles the image profile from flags and the spec file.
func imageConfig(opts *TestOptions) (config.ImageConfig, error) {
	img := config.ImageConfig{
		Profile:      opts.Profile,
		Image:        opts.Image,
		PullOnCreate: opts.Pull,
	}

	if opts.SpecFile != "" {
		spec, err := config.LoadContainerSpec(opts.SpecFile)
		if err != nil {
			return img, err
		}
		img.Spec = spec
	}

	if opts.Cmd != "" {
		argv, err := shlex.Split(opts.Cmd)
		if err != nil {
			return img, cmdutil.FlagErrorf("invalid --cmd: %v", err)
		}
		img.Spec.Cmd = argv
	}

	if opts.RegistryUser != "" {
		creds := &config.RegistryCredentials{Username: opts.RegistryUser}
		if opts.RegistryPasswordStdin {
			password, err := readPassword(opts.IOStreams.In)
			if err != nil {
				return img, err
			}
			creds.Password = password
		}
		img.Credentials = creds
	}

	return img, nil
}

func readPassword(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	password := strings.TrimRight(string(b), "\r\n")
	if password == "" {
		return "", errors.New("password from stdin is empty")
	}
	return password, nil
}

func failureText(msg containertest.StatusMsg) string {
	var te *containertest.TaskError
	if errors.As(msg.Failure, &te) {
		// Engine errors are rendered in full below the summary line.
		var dErr *docker.DockerError
		if te.Cause != nil && !errors.As(te.Cause, &dErr) {
			return fmt.Sprintf("%s: %v", te.Reason, te.Cause)
		}
		return te.Reason
	}
	if msg.Msg != "" {
		return msg.Msg
	}
	if msg.Failure != nil {
		return msg.Failure.Error()
	}
	return "unknown failure"
}

// statusPrinter writes one line per status message, skipping the blank
// PENDING that opens each phase.
type statusPrinter struct {
	out io.Writer
	cs  *iostreams.ColorScheme
}

func (p *statusPrinter) print(msg containertest.StatusMsg, elapsed time.Duration) {
	if msg.Msg == "" && msg.Status == containertest.StatusPending {
		return
	}

	var icon string
	switch msg.Status {
	case containertest.StatusSuccess:
		icon = p.cs.SuccessIcon()
	case containertest.StatusFailure:
		icon = p.cs.FailureIcon()
	default:
		icon = p.cs.PendingIcon()
	}

	fmt.Fprintf(p.out, "%s %-6s %s %s\n",
		icon, msg.Phase, msg.Msg, p.cs.Muted(fmt.Sprintf("[%s]", elapsed.Truncate(time.Millisecond))))
}
