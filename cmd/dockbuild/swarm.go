package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/dockbuild/internal/shell/swarm"
)

// =============================================================================
// Swarm Commands
// =============================================================================

func newSwarmCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "Manage the local swarm, its resources and stacks",
	}

	var force bool
	leave := &cobra.Command{
		Use:   "leave",
		Short: "Leave the swarm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Swarm().Leave(cmd.Context(), force)
		},
	}
	leave.Flags().BoolVar(&force, "force", false, "Leave even when this node is a manager")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Initialise a swarm unless this node is already part of one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.Swarm().Start(cmd.Context())
			},
		},
		leave,
		newSwarmNetworkCmd(app),
		newSwarmResourceCmd(app, "config", "configs", (*swarm.Manager).CreateConfig, (*swarm.Manager).RemoveConfig),
		newSwarmResourceCmd(app, "secret", "secrets", (*swarm.Manager).CreateSecret, (*swarm.Manager).RemoveSecret),
		newSwarmVolumeCmd(app),
		newSwarmStackCmd(app),
		newSwarmWaitCmd(app),
	)
	return cmd
}

func newSwarmNetworkCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Create and remove swarm networks",
	}

	opts := swarm.DefaultNetworkOptions()
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a network, an attachable overlay by default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Swarm().CreateNetwork(cmd.Context(), args[0], opts)
		},
	}
	create.Flags().StringVar(&opts.Driver, "driver", opts.Driver, "Network driver")
	create.Flags().BoolVar(&opts.Attachable, "attachable", opts.Attachable, "Allow standalone containers to attach")
	create.Flags().BoolVar(&opts.Encrypted, "encrypted", false, "Encrypt overlay traffic")
	create.Flags().StringArrayVar(&opts.Options, "opt", nil, "Extra engine arguments, e.g. --ipv6")

	cmd.AddCommand(create, &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Swarm().RemoveNetwork(cmd.Context(), args[0])
		},
	})
	return cmd
}

// newSwarmResourceCmd builds the create/rm pair shared by configs and
// secrets, which are both created from a file.
func newSwarmResourceCmd(
	app *App,
	use, plural string,
	create func(m *swarm.Manager, ctx context.Context, file, name string) error,
	remove func(m *swarm.Manager, ctx context.Context, name string) error,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "Create and remove swarm " + plural,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME FILE",
			Short: "Create a " + use + " from the contents of FILE",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return create(app.Swarm(), cmd.Context(), args[1], args[0])
			},
		},
		&cobra.Command{
			Use:   "rm NAME",
			Short: "Remove a " + use,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return remove(app.Swarm(), cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newSwarmVolumeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Create and remove volumes",
	}

	var driver string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Swarm().CreateVolume(cmd.Context(), args[0], driver)
		},
	}
	create.Flags().StringVar(&driver, "driver", "", "Volume driver")

	cmd.AddCommand(create, &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Swarm().RemoveVolume(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newSwarmStackCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Deploy and remove stacks",
	}

	var (
		file             string
		withRegistryAuth bool
	)
	deploy := &cobra.Command{
		Use:   "deploy STACK",
		Short: "Deploy a compose file as a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Swarm().DeployStack(cmd.Context(), file, args[0], withRegistryAuth)
		},
	}
	deploy.Flags().StringVarP(&file, "compose-file", "c", "docker-compose.yml", "Compose file to deploy")
	deploy.Flags().BoolVar(&withRegistryAuth, "with-registry-auth", false, "Send registry credentials to the swarm agents")

	cmd.AddCommand(deploy, &cobra.Command{
		Use:   "rm STACK",
		Short: "Remove a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Swarm().RemoveStack(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newSwarmWaitCmd(app *App) *cobra.Command {
	var timeout, interval time.Duration
	cmd := &cobra.Command{
		Use:   "wait SERVICE...",
		Short: "Wait until every replica of the services is running",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Swarm().WaitUntilServicesRunning(cmd.Context(), timeout, interval, args...)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Give up after this long")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval")
	return cmd
}
