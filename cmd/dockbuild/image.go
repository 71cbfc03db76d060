package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/dockbuild/internal/core/command"
	"github.com/artpar/dockbuild/internal/shell/docker"
	"github.com/artpar/dockbuild/internal/shell/terminal"
)

// =============================================================================
// Image Commands
// =============================================================================

func newImageCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Build, run, tag, push and inspect images",
	}
	cmd.AddCommand(
		newImageBuildCmd(app),
		newImageRunCmd(app),
		&cobra.Command{
			Use:   "pull IMAGE...",
			Short: "Pull images",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				images, err := app.Images(cmd.Context())
				if err != nil {
					return err
				}
				for _, image := range args {
					if err := images.PullImage(cmd.Context(), image); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "push IMAGE...",
			Short: "Push images",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, image := range args {
					if err := app.Docker.PushImage(cmd.Context(), image); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "tag SOURCE TARGET",
			Short: "Tag an image",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.Docker.TagImage(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "save IMAGE OUTPUT",
			Short: "Save an image to a tar archive",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.Docker.SaveImage(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "digest IMAGE",
			Short: "Print the repository digest of a local image",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				inspector, err := app.Inspector(cmd.Context())
				if err != nil {
					return err
				}
				ref, err := inspector.RepoDigest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ref)
				return nil
			},
		},
		&cobra.Command{
			Use:   "id IMAGE",
			Short: "Print the image ID",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := app.Docker.ImageID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "exists IMAGE",
			Short: "Print whether an image is present locally",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				images, err := app.Images(cmd.Context())
				if err != nil {
					return err
				}
				ok, err := images.ImageExists(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			},
		},
		newImageLabelCmd(app),
		&cobra.Command{
			Use:   "inspect IMAGE",
			Short: "Print the inspect document of an image",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := app.Docker.ImageInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), info)
			},
		},
		newLoginCmd(app),
		&cobra.Command{
			Use:   "logout [SERVER]",
			Short: "Log out of a registry",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				server := ""
				if len(args) == 1 {
					server = args[0]
				}
				return app.Docker.Logout(cmd.Context(), server, app.Config.DryRun)
			},
		},
	)
	return cmd
}

func newImageBuildCmd(app *App) *cobra.Command {
	var opts command.BuildOptions
	cmd := &cobra.Command{
		Use:   "build IMAGE",
		Short: "Build an image, optionally for several platforms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Image = args[0]
			return app.Docker.BuildImage(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Dockerfile, "file", "f", "Dockerfile", "Dockerfile to build")
	cmd.Flags().StringVar(&opts.Context, "context", ".", "Build context")
	cmd.Flags().StringArrayVar(&opts.Args, "build-arg", nil, "Build argument KEY=VALUE")
	cmd.Flags().StringSliceVarP(&opts.Tags, "tag", "t", nil, "Extra tags applied to the image")
	cmd.Flags().StringSliceVar(&opts.Platforms, "platform", nil, "Target platforms, e.g. linux/amd64,linux/arm64")
	cmd.Flags().BoolVar(&opts.Push, "push", false, "Push after building")
	return cmd
}

func newImageRunCmd(app *App) *cobra.Command {
	var (
		opts       command.RunOptions
		env        []string
		properties string
	)
	cmd := &cobra.Command{
		Use:   "run IMAGE [-- COMMAND...]",
		Short: "Run an image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = args[1:]
			opts.Env = make(map[string]string, len(env))
			for _, kv := range env {
				k, v, _ := strings.Cut(kv, "=")
				opts.Env[k] = v
			}
			props, err := terminal.SplitArgs(properties)
			if err != nil {
				return fmt.Errorf("%w: --properties: %v", errConfig, err)
			}
			opts.Properties = props
			return app.Docker.Run(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "Container name")
	cmd.Flags().BoolVarP(&opts.Detach, "detach", "d", false, "Run in the background")
	cmd.Flags().BoolVar(&opts.Remove, "rm", false, "Remove the container when it exits")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "Environment variable KEY=VALUE")
	cmd.Flags().StringArrayVar(&opts.Publish, "publish", nil, "Publish a port, e.g. 8080:80/tcp")
	cmd.Flags().StringVar(&properties, "properties", "", `Extra engine arguments, e.g. "--network host"`)
	return cmd
}

func newImageLabelCmd(app *App) *cobra.Command {
	var exists bool
	cmd := &cobra.Command{
		Use:   "label IMAGE [KEY]",
		Short: "Print image labels, or a single label value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			images, err := app.Images(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				labels, err := images.ImageLabels(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), labels)
			}
			if exists {
				ok, err := docker.ImageLabelExists(ctx, images, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			}
			v, err := docker.ImageLabel(ctx, images, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&exists, "exists", false, "Print whether the label exists instead of its value")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "login [SERVER]",
		Short: "Log in to a registry; the password is read from stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := ""
			if len(args) == 1 {
				server = args[0]
			}
			password, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			return app.Docker.Login(cmd.Context(), server, user, strings.TrimRight(string(password), "\r\n"), app.Config.DryRun)
		},
	}
	cmd.Flags().StringVarP(&user, "username", "u", "", "Registry user")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// =============================================================================
// Container Commands
// =============================================================================

func newContainerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Inspect containers",
	}

	var assertCodes bool
	exitCodes := &cobra.Command{
		Use:   "exit-codes CONTAINER...",
		Short: "Print container exit codes; with --assert, fail on any non-zero code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inspector, err := app.Inspector(cmd.Context())
			if err != nil {
				return err
			}
			report, verifyErr := docker.VerifyContainerExitCodes(cmd.Context(), inspector, args, assertCodes, app.Logger)
			if report != nil {
				for _, name := range args {
					if code, ok := report.Codes[name]; ok {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, code)
					}
				}
			}
			return verifyErr
		},
	}
	exitCodes.Flags().BoolVar(&assertCodes, "assert", false, "Fail when any container exited non-zero")

	cmd.AddCommand(
		exitCodes,
		&cobra.Command{
			Use:   "running CONTAINER",
			Short: "Print whether a container is running",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				inspector, err := app.Inspector(cmd.Context())
				if err != nil {
					return err
				}
				running, err := inspector.ContainerRunning(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), running)
				return nil
			},
		},
		&cobra.Command{
			Use:   "logs CONTAINER",
			Short: "Print container logs",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				logs, err := app.Docker.ContainerLogs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), logs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "copy CONTAINER SRC DEST",
			Short: "Copy a path out of a container",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.Docker.CopyFromContainer(cmd.Context(), args[0], args[1], args[2])
			},
		},
		&cobra.Command{
			Use:   "inspect CONTAINER",
			Short: "Print the inspect document of a container",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := app.Docker.ContainerInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), info)
			},
		},
	)
	return cmd
}
