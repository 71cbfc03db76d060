package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/artpar/dockbuild/internal/core/compose"
	"github.com/artpar/dockbuild/internal/shell/composecli"
)

// =============================================================================
// Compose Commands
// =============================================================================

func newComposeCmd(app *App) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Run and transform compose projects",
	}
	cmd.PersistentFlags().StringSliceVarP(&files, "file", "f", []string{"docker-compose.yml"}, "Compose files, later files override earlier ones")

	// runner wraps a RunE body that needs a compose runner.
	runner := func(fn func(cmd *cobra.Command, r *composecli.Runner, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			r, err := app.Compose(cmd.Context())
			if err != nil {
				return err
			}
			return fn(cmd, r, args)
		}
	}

	var detached bool
	up := &cobra.Command{
		Use:   "up",
		Short: "Create and start the services",
		Args:  cobra.NoArgs,
		RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, _ []string) error {
			return r.Up(cmd.Context(), files, detached)
		}),
	}
	up.Flags().BoolVarP(&detached, "detach", "d", false, "Run in the background")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "build",
			Short: "Build the services",
			Args:  cobra.NoArgs,
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, _ []string) error {
				return r.Build(cmd.Context(), files...)
			}),
		},
		up,
		&cobra.Command{
			Use:   "down",
			Short: "Stop and remove the services",
			Args:  cobra.NoArgs,
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, _ []string) error {
				return r.Down(cmd.Context(), files...)
			}),
		},
		&cobra.Command{
			Use:   "pull",
			Short: "Pull service images",
			Args:  cobra.NoArgs,
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, _ []string) error {
				return r.Pull(cmd.Context(), files...)
			}),
		},
		&cobra.Command{
			Use:   "push",
			Short: "Push service images as compose names them",
			Args:  cobra.NoArgs,
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, _ []string) error {
				return r.Push(cmd.Context(), files...)
			}),
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the configuration as the engine renders it",
			Args:  cobra.NoArgs,
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, _ []string) error {
				out, err := r.Config(cmd.Context(), files...)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}),
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the merged files against the compose schema",
			Args:  cobra.NoArgs,
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, _ []string) error {
				project, err := r.Validate(cmd.Context(), files...)
				if err != nil {
					return err
				}
				names := project.ServiceNames()
				sort.Strings(names)
				fmt.Fprintf(cmd.OutOrStdout(), "project %s is valid: %d services\n", project.Name, len(names))
				printLines(cmd.OutOrStdout(), names)
				return nil
			}),
		},
		newComposeMergeCmd(app, &files),
		newComposeNamesCmd(app, &files),
		newComposeDigestsCmd(app, &files),
		&cobra.Command{
			Use:   "tag TAG",
			Short: "Tag every service image with TAG",
			Args:  cobra.ExactArgs(1),
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, args []string) error {
				for _, f := range files {
					plan, err := r.TagImages(cmd.Context(), f, args[0])
					if err != nil {
						return err
					}
					for _, t := range plan {
						fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", t.Source, t.Target)
					}
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "push-images [TAG]",
			Short: "Push every service image, tagging it with TAG first when given",
			Args:  cobra.MaximumNArgs(1),
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, args []string) error {
				tag := ""
				if len(args) == 1 {
					tag = args[0]
				}
				for _, f := range files {
					refs, err := r.PushImages(cmd.Context(), f, tag)
					if err != nil {
						return err
					}
					printLines(cmd.OutOrStdout(), refs)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "save FOLDER",
			Short: "Save every service image to a tar archive in FOLDER",
			Args:  cobra.ExactArgs(1),
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, args []string) error {
				for _, f := range files {
					written, err := r.SaveImages(cmd.Context(), f, args[0])
					if err != nil {
						return err
					}
					printLines(cmd.OutOrStdout(), written)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "test CONTAINER...",
			Short: "Run the project attached and fail when a named container exits non-zero",
			Args:  cobra.MinimumNArgs(1),
			RunE: runner(func(cmd *cobra.Command, r *composecli.Runner, args []string) error {
				report, err := r.ExecuteTests(cmd.Context(), files, args)
				if report != nil && len(report.Failed) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "failed containers:")
					for _, name := range report.Failed {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s\t%d\n", name, report.Codes[name])
					}
				}
				return err
			}),
		},
	)
	return cmd
}

func newComposeMergeCmd(app *App, files *[]string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the compose files into one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := app.Compose(cmd.Context())
			if err != nil {
				return err
			}
			return r.MergeFiles(*files, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "docker-compose.merged.yml", "Output file")
	return cmd
}

func newComposeNamesCmd(app *App, files *[]string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Give every unnamed service a container name derived from the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := app.Compose(cmd.Context())
			if err != nil {
				return err
			}
			assigned, err := r.AddContainerNames(*files, output)
			if err != nil {
				return err
			}
			printLines(cmd.OutOrStdout(), assigned)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "docker-compose.named.yml", "Output file")
	return cmd
}

func newComposeDigestsCmd(app *App, files *[]string) *cobra.Command {
	var (
		output     string
		resolveEnv bool
		exclude    []string
	)
	cmd := &cobra.Command{
		Use:   "digests",
		Short: "Pin every service image to its repository digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := app.Compose(cmd.Context())
			if err != nil {
				return err
			}

			opts := compose.ResolveOptions{
				ResolveEnvironment: app.Config.Compose.ResolveEnvironment,
				Exclude:            app.Config.Compose.ExcludeEnv,
			}
			if cmd.Flags().Changed("resolve-env") {
				opts.ResolveEnvironment = resolveEnv
			}
			if cmd.Flags().Changed("exclude-env") {
				opts.Exclude = exclude
			}

			report, err := r.AddDigestsToImageTags(cmd.Context(), *files, output, opts)
			if report != nil {
				services := make([]string, 0, len(report.Resolved))
				for svc := range report.Resolved {
					services = append(services, svc)
				}
				sort.Strings(services)
				for _, svc := range services {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", svc, report.Resolved[svc])
				}
				for _, svc := range report.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tskipped\n", svc)
				}
				for _, svc := range report.Deferred {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tlookup skipped (dry run)\n", svc)
				}
				for _, name := range report.Placeholders {
					fmt.Fprintf(cmd.OutOrStdout(), "${%s}\tunresolved\n", name)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "docker-compose.digests.yml", "Output file")
	cmd.Flags().BoolVar(&resolveEnv, "resolve-env", false, "Substitute ${VAR} placeholders before pinning")
	cmd.Flags().StringSliceVar(&exclude, "exclude-env", nil, "Variables never substituted")
	return cmd
}
