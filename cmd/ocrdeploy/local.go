package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/dotenv"
	"github.com/loykin/ocrdeploy/internal/image"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run the handler image in a local container for smoke testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := common.GetLogger().WithComponent("local")

		stop, _ := cmd.Flags().GetString("stop")
		builder, err := image.NewBuilder()
		if err != nil {
			return err
		}
		defer func() { _ = builder.Close() }()

		if stop != "" {
			return builder.StopLocal(cmd.Context(), stop)
		}

		env := cfg.Image.Recipe.ContainerEnv()
		// The env file is optional here; HF_TOKEN is only needed for gated models.
		if res, err := dotenv.Load(viper.GetString("env_file")); err == nil {
			if v := dotenv.TrimQuotes(res.Values["HF_TOKEN"]); v != "" {
				env["HF_TOKEN"] = v
			}
		}

		tag, _ := cmd.Flags().GetString("tag")
		if tag == "" {
			tag = cfg.Image.Name
		}
		port, _ := cmd.Flags().GetInt("port")
		gpu, _ := cmd.Flags().GetBool("gpu")
		name, _ := cmd.Flags().GetString("name")

		id, err := builder.RunLocal(cmd.Context(), image.LocalRunOptions{
			Tag:      tag,
			Name:     name,
			HostPort: port,
			Env:      env,
			GPU:      gpu,
		})
		if err != nil {
			return err
		}
		logger.Info("stop with", "command", "ocrdeploy local --stop "+id[:12])
		return nil
	},
}

func init() {
	localCmd.Flags().String("tag", "", "image tag to run (defaults to the configured image name)")
	localCmd.Flags().String("name", "chandra-local", "container name")
	localCmd.Flags().Int("port", 8000, "host port bound to the handler")
	localCmd.Flags().Bool("gpu", false, "pass the host GPUs into the container")
	localCmd.Flags().String("stop", "", "stop the given container id instead of starting one")
}
