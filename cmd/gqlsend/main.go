package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saturnines/nexus-gql/pkg/config"
	"github.com/saturnines/nexus-gql/pkg/core"
	"github.com/saturnines/nexus-gql/pkg/errors"
	"github.com/saturnines/nexus-gql/pkg/operation"
	"github.com/saturnines/nexus-gql/pkg/transport/graphql"
)

var exampleUsage = strings.TrimSpace(`
  gqlsend --url https://countries.trevorblades.com/ --query '{ country(code: "NZ") { name } }'
  gqlsend --config transport.yaml --query-file hero.graphql --variables '{"episode":"JEDI"}'
  gqlsend --config transport.toml --query-file hero.graphql --persisted
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type flags struct {
	configPath    string
	envFile       string
	url           string
	query         string
	queryFile     string
	variables     string
	operationName string
	persisted     bool
	id            string
	timeout       string
	logLevel      string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "gqlsend",
		Short:        "Send one GraphQL operation over HTTP and print the response",
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	fl := root.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "transport config file (.yaml or .toml)")
	fl.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before the config is expanded")
	fl.StringVarP(&f.url, "url", "u", "", "GraphQL endpoint (overrides config)")
	fl.StringVarP(&f.query, "query", "q", "", "operation document")
	fl.StringVarP(&f.queryFile, "query-file", "f", "", "read the operation document from a file")
	fl.StringVar(&f.variables, "variables", "", "variables as a JSON object")
	fl.StringVar(&f.operationName, "operation-name", "", "operation to run when the document has several")
	fl.BoolVar(&f.persisted, "persisted", false, "send the operation identifier instead of the document")
	fl.StringVar(&f.id, "id", "", "persisted operation identifier (default: sha256 of the document)")
	fl.StringVar(&f.timeout, "timeout", "", "HTTP timeout, e.g. 10s (overrides config)")
	fl.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, error or disabled (overrides config)")

	return root
}

func run(cmd *cobra.Command, f flags) error {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f.envFile, err)
		}
	}

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	document, err := readDocument(f)
	if err != nil {
		return err
	}

	var variables map[string]interface{}
	if f.variables != "" {
		if err := json.Unmarshal([]byte(f.variables), &variables); err != nil {
			return errors.WrapError(err, errors.ErrValidation, "parse --variables")
		}
	}

	opts := []operation.Option{operation.WithOperationName(f.operationName)}
	if f.id != "" {
		opts = append(opts, operation.WithIdentifier(f.id))
	} else if cfg.SendOperationIdentifiers {
		opts = append(opts, operation.WithComputedIdentifier())
	}
	op, err := operation.New(document, variables, opts...)
	if err != nil {
		return err
	}

	tr, err := core.NewTransport(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := tr.Do(ctx, op)
	if err != nil {
		var httpErr *graphql.HTTPResponseError
		if errors.As(err, &httpErr) && len(httpErr.Body) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), string(httpErr.Body))
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp.Body); err != nil {
		return err
	}

	if gqlErrs := resp.Errors(); len(gqlErrs) > 0 {
		return fmt.Errorf("server returned %d GraphQL error(s), first: %s", len(gqlErrs), gqlErrs[0].Message)
	}
	return nil
}

// loadConfig reads the config file, then applies flag overrides, then
// validates the result.
func loadConfig(cmd *cobra.Command, f flags) (*config.Transport, error) {
	cfg := &config.Transport{}
	if f.configPath != "" {
		data, err := os.ReadFile(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		// validation waits until flag overrides are applied
		cfg, err = config.NewLoader(&config.EnvExpander{}, nil).Parse(data, config.FormatForPath(f.configPath))
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.URL = f.url
	}
	if changed("persisted") {
		cfg.SendOperationIdentifiers = f.persisted
	}
	if changed("timeout") {
		cfg.HTTP.Timeout = f.timeout
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}

	return config.NewDefaultLoader().Finish(cfg)
}

func readDocument(f flags) (string, error) {
	switch {
	case f.query != "" && f.queryFile != "":
		return "", errors.WrapError(fmt.Errorf("--query and --query-file are mutually exclusive"), errors.ErrValidation, "read operation")
	case f.query != "":
		return f.query, nil
	case f.queryFile != "":
		b, err := os.ReadFile(f.queryFile)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(b), nil
	default:
		return "", errors.WrapError(fmt.Errorf("one of --query or --query-file is required"), errors.ErrValidation, "read operation")
	}
}
