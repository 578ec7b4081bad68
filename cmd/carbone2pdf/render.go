package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carbone2pdf/internal/carbone"
	u "carbone2pdf/internal/utils"
)

type renderOptions struct {
	templatePath string
	dataPath     string
	outputPath   string
	convertTo    string
	endpoint     string
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one template into a local file",
		Long: "Read the template, send it with the data record to the rendering service " +
			"and write the document to the output path. Nothing is written unless the " +
			"service answers 200.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := u.GetConfig()

			job, err := buildJob(cfg.Render, opts)
			if err != nil {
				return err
			}

			token, err := u.ResolveCredential(cfg.Carbone)
			if err != nil {
				return fmt.Errorf("%w: set %s or carbone.api_key", err, u.CredentialEnv)
			}

			carboneCfg := cfg.Carbone
			if opts.endpoint != "" {
				carboneCfg.EndpointURL = opts.endpoint
			}
			client := carbone.NewClientFromConfig(carboneCfg, token)

			res, err := carbone.NewDispatcher(client).Run(cmd.Context(), job)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Document generated successfully: %s\n", res.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.templatePath, "template", "", "template file (overrides render.template_path)")
	cmd.Flags().StringVar(&opts.dataPath, "data", "", "JSON data record file (overrides render.data_path and render.data)")
	cmd.Flags().StringVarP(&opts.outputPath, "out", "o", "", "output file (overrides render.output_path)")
	cmd.Flags().StringVar(&opts.convertTo, "convert-to", "", "output format (overrides render.convert_to)")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "render endpoint URL (overrides carbone.endpoint_url)")
	return cmd
}

// buildJob merges flags over the render section of the config.
func buildJob(cfg u.RenderConfig, opts renderOptions) (carbone.Job, error) {
	job := carbone.Job{
		TemplatePath: firstNonEmpty(opts.templatePath, cfg.TemplatePath),
		OutputPath:   firstNonEmpty(opts.outputPath, cfg.OutputPath, "output.pdf"),
		ConvertTo:    firstNonEmpty(opts.convertTo, cfg.ConvertTo),
		Data:         cfg.Data,
	}
	if job.TemplatePath == "" {
		return carbone.Job{}, fmt.Errorf("no template path: use --template or render.template_path")
	}

	if dataPath := firstNonEmpty(opts.dataPath, cfg.DataPath); dataPath != "" {
		data, err := carbone.LoadData(dataPath)
		if err != nil {
			return carbone.Job{}, err
		}
		job.Data = data
	}
	return job, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
