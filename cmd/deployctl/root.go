package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/deployctl/internal/config"
	"github.com/danmuck/deployctl/internal/deploy"
	"github.com/danmuck/deployctl/internal/engine"
	"github.com/danmuck/deployctl/internal/tools"
	"github.com/danmuck/deployctl/internal/topology"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	dir        string
	sudo       bool
	buildOnly  bool
	upOnly     bool
	backend    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "deployctl [flags] <contract> <n_validators>",
		Short: "Redeploy a local validator test cluster",
		Long: `deployctl halts any earlier validator deployment, regenerates the compose
topology for n validators, rebuilds images, reseeds per-node state from the
contract and starts the cluster.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}
			orch, err := opts.orchestrator()
			if err != nil {
				return err
			}
			return orch.Deploy(cmd.Context(), req)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML config file (defaults apply when empty)")
	flags.StringVarP(&opts.dir, "dir", "C", "", "workspace directory (overrides workspace.dir)")
	flags.BoolVarP(&opts.sudo, "sudo", "s", false, "run docker and state commands through sudo")

	cmd.Flags().BoolVar(&opts.buildOnly, "build", false, "build images and reseed state, do not start")
	cmd.Flags().BoolVar(&opts.upOnly, "up", false, "reseed state and start without building")
	cmd.Flags().StringVarP(&opts.backend, "avm", "a", string(topology.DefaultBackend), "execution backend: cpp, go or test")
	cmd.MarkFlagsMutuallyExclusive("build", "up")

	cmd.AddCommand(newHaltCmd(opts), newRenderCmd(opts), newInitConfigCmd())
	return cmd
}

func (o *options) request(args []string) (deploy.Request, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return deploy.Request{}, fmt.Errorf("%w: n_validators %q is not an integer", deploy.ErrInvalidRequest, args[1])
	}
	backend, err := topology.ParseBackend(o.backend)
	if err != nil {
		return deploy.Request{}, fmt.Errorf("%w: %w", deploy.ErrInvalidRequest, err)
	}
	phase, err := deploy.NewPhase(o.buildOnly, o.upOnly)
	if err != nil {
		return deploy.Request{}, err
	}
	return deploy.Request{
		ContractPath: args[0],
		NodeCount:    n,
		Backend:      backend,
		Sudo:         o.sudo,
		Phase:        phase,
	}, nil
}

func (o *options) config() (config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.configPath)
}

func (o *options) orchestrator() (*deploy.Orchestrator, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	ws, err := cfg.ResolveWorkspace(o.dir)
	if err != nil {
		return nil, err
	}
	runner := tools.ExecRunner{Dir: ws.Dir}
	boot, err := deploy.NewCommandBootstrapper(runner, cfg.Bootstrap.Command, ws)
	if err != nil {
		return nil, err
	}
	return deploy.New(deploy.Config{
		Workspace:       ws,
		Names:           cfg.TopologyNames(),
		CacheImages:     cfg.Cache.Images,
		CacheDockerfile: cfg.Cache.Dockerfile,
		Runtime: func(sudo bool) engine.ContainerRuntime {
			return engine.NewDockerCLI(cfg.DockerConfig(runner, sudo))
		},
		Bootstrapper: boot,
		Runner:       runner,
	})
}

func newHaltCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "halt",
		Short: "Stop and remove containers of an earlier deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, err := opts.orchestrator()
			if err != nil {
				return err
			}
			return halt(cmd, orch, opts.sudo)
		},
	}
}

func halt(cmd *cobra.Command, orch *deploy.Orchestrator, sudo bool) error {
	report, err := orch.Halt(cmd.Context(), sudo)
	if err != nil {
		return err
	}
	if !report.Mutated() {
		cmd.Println("nothing to halt")
		return nil
	}
	cmd.Printf("halted: compose_down=%t killed=%d removed=%d\n",
		report.ComposeDown, len(report.Killed), len(report.Removed))
	return nil
}

func newRenderCmd(opts *options) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "render <contract> <n_validators>",
		Short: "Print the compose topology a deploy would write",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := *opts
			local.backend = backend
			req, err := local.request(args)
			if err != nil {
				return err
			}
			orch, err := opts.orchestrator()
			if err != nil {
				return err
			}
			out, err := orch.Render(req)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&backend, "avm", "a", string(topology.DefaultBackend), "execution backend: cpp, go or test")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a starter TOML config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], force); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
