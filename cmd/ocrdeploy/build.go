package main

import (
	"github.com/spf13/cobra"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/image"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the handler image from the declarative recipe",
	RunE: func(cmd *cobra.Command, args []string) error {
		printOnly, _ := cmd.Flags().GetBool("print")
		if printOnly {
			cmd.Print(cfg.Image.Recipe.Render())
			return nil
		}

		tag, _ := cmd.Flags().GetString("tag")
		if tag == "" {
			tag = cfg.Image.Name
		}
		push, _ := cmd.Flags().GetBool("push")

		builder, err := image.NewBuilder()
		if err != nil {
			return err
		}
		defer func() { _ = builder.Close() }()
		if err := builder.Ping(cmd.Context()); err != nil {
			return err
		}

		if err := builder.Build(cmd.Context(), image.BuildOptions{
			ContextDir: cfg.Build.ContextDir,
			Tag:        tag,
			Recipe:     cfg.Image.Recipe,
		}); err != nil {
			return err
		}

		if push || cfg.Build.Push {
			return builder.Push(cmd.Context(), tag)
		}
		common.GetLogger().WithComponent("build").Info("skipping push", "tag", tag)
		return nil
	},
}

func init() {
	buildCmd.Flags().String("tag", "", "image tag (defaults to the configured image name)")
	buildCmd.Flags().Bool("push", false, "push the image to its registry after building")
	buildCmd.Flags().Bool("print", false, "print the rendered Dockerfile and exit")
}
