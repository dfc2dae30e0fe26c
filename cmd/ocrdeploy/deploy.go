package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/dotenv"
	"github.com/loykin/ocrdeploy/internal/runpod"
	"github.com/loykin/ocrdeploy/internal/store"
)

// InfoFileName receives the deployment result so other tools can pick up
// the endpoint id and URL.
const InfoFileName = "runpod_endpoint_info.json"

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the OCR endpoint (native API calls, or --delegate to the helper program)",
	RunE: func(cmd *cobra.Command, args []string) error {
		delegate, _ := cmd.Flags().GetBool("delegate")
		if delegate {
			return runPipeline(cmd.Context(), pipelineOptionsFromViper())
		}

		logger := common.GetLogger().WithComponent("deploy")
		values, err := loadEnvironment(viper.GetString("env_file"))
		if err != nil {
			return err
		}

		opts := cfg.DeployOptions(values)
		client := runpod.NewClient(dotenv.Credential(values))
		result, err := client.Deploy(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if err := writeInfoFile(result); err != nil {
			logger.Warn("could not write endpoint info file", "error", err)
		}
		recordDeployment(logger, cfg.HistoryPath(), result, opts.DockerImage)

		logger.Info("deployment finished",
			"endpoint", result.Name, "id", result.ID, "url", result.URL)
		return nil
	},
}

func init() {
	deployCmd.Flags().Bool("delegate", false, "delegate deployment to the external program instead of calling the API")
}

func writeInfoFile(result *runpod.DeployResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(InfoFileName, data, 0o644)
}

// recordDeployment appends to the local history; history is advisory, so a
// store failure is logged but never fails the deployment.
func recordDeployment(logger *common.Logger, dbPath string, result *runpod.DeployResult, imageName string) {
	st, err := store.Open(dbPath)
	if err != nil {
		logger.Warn("could not open history store", "path", dbPath, "error", err)
		return
	}
	defer func() { _ = st.Close() }()

	action := store.ActionSkipped
	switch {
	case result.Created:
		action = store.ActionCreated
	case result.Updated:
		action = store.ActionUpdated
	}
	rec := store.Record{
		EndpointID: result.ID,
		Name:       result.Name,
		Image:      imageName,
		TemplateID: result.TemplateID,
		Action:     action,
	}
	if err := st.Append(rec); err != nil {
		logger.Warn("could not record deployment history", "error", err)
	}
}
