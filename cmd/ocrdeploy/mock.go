package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/mockserver"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a local mock of the serverless endpoint API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		delay, _ := cmd.Flags().GetDuration("delay")

		common.GetLogger().WithComponent("mock").Info("mock endpoint listening",
			"addr", addr, "delay", delay.String(),
			"example", "http://"+addr+"/mock/runsync")

		srv := &http.Server{
			Addr:              addr,
			Handler:           mockserver.New(delay).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return srv.ListenAndServe()
	},
}

func init() {
	mockCmd.Flags().String("addr", "127.0.0.1:8008", "listen address")
	mockCmd.Flags().Duration("delay", mockserver.DefaultDelay, "simulated processing time for async jobs")
}
