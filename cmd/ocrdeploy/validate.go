package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/dotenv"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the env file and deploy configuration without deploying",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := common.GetLogger().WithComponent("validate")
		path := viper.GetString("env_file")

		res, err := dotenv.Load(path)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			logger.Warn("env file: "+w, "path", path)
		}
		if err := dotenv.RequireCredential(res.Values); err != nil {
			return err
		}
		for _, k := range res.KeysSet {
			logger.Info("env entry", "key", k,
				"value", common.MaskSensitiveData(fmt.Sprintf("%s=%s", k, res.Values[k])))
		}

		opts := cfg.DeployOptions(res.Values)
		logger.Info("deployment target",
			"endpoint", opts.EndpointName,
			"image", opts.DockerImage,
			"gpu", opts.GpuIDs,
			"workers_max", opts.WorkersMax)

		if rendered := cfg.Image.Recipe.Render(); rendered == "" {
			return fmt.Errorf("image recipe rendered empty")
		}
		logger.Info("configuration valid", "env_file", path)
		return nil
	},
}
