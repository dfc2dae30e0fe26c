package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/ocrdeploy/internal/common"
	"github.com/loykin/ocrdeploy/internal/dotenv"
	"github.com/loykin/ocrdeploy/internal/ocr"
	"github.com/loykin/ocrdeploy/internal/runpod"
	"github.com/loykin/ocrdeploy/internal/store"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <file-or-url>...",
	Short: "Submit an OCR job to the deployed endpoint and save the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := common.GetLogger().WithComponent("invoke")

		values, err := loadEnvironment(viper.GetString("env_file"))
		if err != nil {
			return err
		}

		endpointID, err := resolveEndpointID(cmd, values)
		if err != nil {
			return err
		}

		opts, err := jobOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		encoded, err := ocr.EncodeSources(cmd.Context(), args)
		if err != nil {
			return err
		}
		input, err := ocr.BuildInput(encoded, opts)
		if err != nil {
			return err
		}

		apiBase, _ := cmd.Flags().GetString("api-base")
		var clientOpts []runpod.EndpointOption
		if apiBase != "" {
			clientOpts = append(clientOpts, runpod.WithAPIBase(apiBase))
		}
		client := runpod.NewEndpointClient(dotenv.Credential(values), endpointID, clientOpts...)

		sync, _ := cmd.Flags().GetBool("sync")
		interval, _ := cmd.Flags().GetDuration("poll-interval")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		var raw []byte
		if sync {
			out, err := client.RunSync(cmd.Context(), input)
			if err != nil {
				return err
			}
			raw = []byte(out.Raw)
		} else {
			jobID, err := client.Run(cmd.Context(), input)
			if err != nil {
				return err
			}
			logger.Info("waiting for job", "job", jobID)
			out, err := client.Wait(cmd.Context(), jobID, interval, timeout)
			if err != nil {
				return err
			}
			raw = []byte(out.Raw)
		}

		output, err := ocr.ParseOutput(raw)
		if err != nil {
			return err
		}
		outDir, _ := cmd.Flags().GetString("output")
		if err := output.Save(outDir); err != nil {
			return err
		}
		logger.Info("job complete",
			"pages", output.TotalPages, "tokens", output.TotalTokens, "output", outDir)
		return nil
	},
}

func init() {
	invokeCmd.Flags().String("endpoint-id", "", "endpoint id (default: env file, then deployment history, then lookup by name)")
	invokeCmd.Flags().String("api-base", "", "override the data-plane base URL (for the mock server)")
	invokeCmd.Flags().Bool("sync", false, "use the blocking runsync API instead of run+poll")
	invokeCmd.Flags().String("output", "ocr_results", "directory to write page results into")
	invokeCmd.Flags().String("page-range", "", "page range as start-end, e.g. 1-5")
	invokeCmd.Flags().Int("max-tokens", ocr.DefaultMaxOutputTokens, "generation token limit per page")
	invokeCmd.Flags().Bool("images", true, "extract embedded images from the results")
	invokeCmd.Flags().Bool("headers-footers", false, "include page headers and footers")
	invokeCmd.Flags().String("prompt", ocr.PromptOCRLayout, "handler prompt type")
	invokeCmd.Flags().String("custom-prompt", "", "custom prompt overriding the prompt type")
	invokeCmd.Flags().Duration("poll-interval", runpod.DefaultPollInterval, "status poll interval for async jobs")
	invokeCmd.Flags().Duration("timeout", runpod.DefaultPollTimeout, "overall wait timeout for async jobs")
}

func jobOptionsFromFlags(cmd *cobra.Command) (ocr.JobOptions, error) {
	opts := ocr.DefaultJobOptions()

	if s, _ := cmd.Flags().GetString("page-range"); s != "" {
		pr, err := parsePageRange(s)
		if err != nil {
			return ocr.JobOptions{}, err
		}
		opts.PageRange = pr
	}
	opts.MaxOutputTokens, _ = cmd.Flags().GetInt("max-tokens")
	opts.IncludeImages, _ = cmd.Flags().GetBool("images")
	opts.IncludeHeadersFooters, _ = cmd.Flags().GetBool("headers-footers")
	opts.PromptType, _ = cmd.Flags().GetString("prompt")
	opts.CustomPrompt, _ = cmd.Flags().GetString("custom-prompt")
	return opts, nil
}

// parsePageRange expands "start-end" (or a single page, 1-based inclusive)
// into the 0-indexed page list the handler consumes: "1-3" means pages
// [0, 1, 2].
func parsePageRange(s string) ([]int, error) {
	first, second, found := strings.Cut(s, "-")
	if !found {
		second = first
	}
	start, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q", s)
	}
	end, err := strconv.Atoi(strings.TrimSpace(second))
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q", s)
	}
	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid page range %q", s)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p-1)
	}
	return pages, nil
}

// resolveEndpointID picks the target endpoint: explicit flag, env file,
// local deployment history, then a control-plane lookup by name.
func resolveEndpointID(cmd *cobra.Command, values dotenv.Map) (string, error) {
	if id, _ := cmd.Flags().GetString("endpoint-id"); id != "" {
		return id, nil
	}
	if id := dotenv.TrimQuotes(values["RUNPOD_ENDPOINT_ID"]); id != "" {
		return id, nil
	}

	name := cfg.Endpoint.Name
	if st, err := store.Open(cfg.HistoryPath()); err == nil {
		rec, err := st.Last(name)
		_ = st.Close()
		if err == nil && rec != nil && rec.EndpointID != "" {
			return rec.EndpointID, nil
		}
	}

	client := runpod.NewClient(dotenv.Credential(values))
	ep, err := client.FindEndpointByName(cmd.Context(), name)
	if err != nil {
		return "", err
	}
	if ep == nil {
		return "", fmt.Errorf("endpoint %q not found, deploy it first or pass --endpoint-id", name)
	}
	return ep.ID, nil
}
