package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/dotenv"
	"github.com/loykin/ocrdeploy/internal/runpod"
	"github.com/loykin/ocrdeploy/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local deployment history and the remote endpoint state",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := common.GetLogger().WithComponent("status")
		limit, _ := cmd.Flags().GetInt("limit")

		showHistory(logger, cfg.HistoryPath(), limit)

		// Remote state needs the credential; without it local history is
		// still useful on its own.
		res, err := dotenv.Load(viper.GetString("env_file"))
		if err != nil || dotenv.RequireCredential(res.Values) != nil {
			logger.Info("no credential available, skipping remote status")
			return nil
		}
		return showRemote(cmd, logger, res.Values)
	},
}

func init() {
	statusCmd.Flags().Int("limit", 10, "number of history entries to show (0 = all)")
}

func showHistory(logger *common.Logger, dbPath string, limit int) {
	st, err := store.Open(dbPath)
	if err != nil {
		logger.Warn("could not open history store", "path", dbPath, "error", err)
		return
	}
	defer func() { _ = st.Close() }()

	hist, err := st.History(limit)
	if err != nil {
		logger.Warn("could not read history", "error", err)
		return
	}
	if len(hist) == 0 {
		logger.Info("no local deployment history")
		return
	}
	for _, r := range hist {
		logger.Info("deployment",
			"when", r.DeployedAt.Format("2006-01-02 15:04:05"),
			"action", r.Action,
			"endpoint", r.Name,
			"id", r.EndpointID,
			"image", r.Image)
	}
}

func showRemote(cmd *cobra.Command, logger *common.Logger, values dotenv.Map) error {
	client := runpod.NewClient(dotenv.Credential(values))
	endpoints, err := client.ListEndpoints(cmd.Context())
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		logger.Info("no serverless endpoints on the account")
		return nil
	}
	for _, ep := range endpoints {
		logger.Info("endpoint",
			"name", ep.Name,
			"id", ep.ID,
			"gpu", ep.GpuIDs,
			"workers", ep.WorkersMax,
			"url", runpod.EndpointURL(ep.ID))

		if ep.Name != cfg.Endpoint.Name {
			continue
		}
		hc := runpod.NewEndpointClient(dotenv.Credential(values), ep.ID)
		if h, err := hc.Health(cmd.Context()); err == nil {
			logger.Info("endpoint health",
				"name", ep.Name,
				"workers_idle", h.WorkersIdle,
				"workers_running", h.WorkersRunning,
				"jobs_queued", h.JobsInQueue,
				"jobs_in_progress", h.JobsInProgress)
		} else {
			logger.Warn("health check failed", "name", ep.Name, "error", err)
		}
	}
	return nil
}
