package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgeflare/json2avro/pkg/pipeline/transform"
)

type convertOptions struct {
	schemaFile         string
	format             string
	output             string
	allowDuplicateKeys bool
}

func newConvertCmd(a *app) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert one JSON document to Avro",
		Long: `Convert reads a single JSON document from file, or stdin when file is
omitted or "-", and writes its Avro encoding to stdout or --output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			out := cmd.OutOrStdout()
			if opts.output != "" {
				f, err := os.Create(opts.output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			return a.convert(opts, in, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.schemaFile, "schema", "s", "", "Avro schema file")
	flags.StringVarP(&opts.format, "format", "f", "ocf", "output format (ocf, binary, single)")
	flags.StringVarP(&opts.output, "output", "o", "", "write to this file instead of stdout")
	flags.BoolVar(&opts.allowDuplicateKeys, "allow-duplicate-keys", false, "let the last of repeated object keys win")
	cobra.CheckErr(cmd.MarkFlagRequired("schema"))

	return cmd
}

func (a *app) convert(opts convertOptions, in io.Reader, out io.Writer) error {
	cfg := &transform.JSONToAvroConfig{
		SchemaFile:         opts.schemaFile,
		Format:             opts.format,
		AllowDuplicateKeys: opts.allowDuplicateKeys,
	}
	conv, err := cfg.Converter()
	if err != nil {
		return err
	}

	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	encoded, err := conv.Convert(payload)
	if err != nil {
		a.logger.Debug("Conversion failed",
			zap.String("error_type", transform.ErrorType(err)),
			zap.Error(err))
		return fmt.Errorf("convert: %w", err)
	}

	_, err = out.Write(encoded)
	return err
}
