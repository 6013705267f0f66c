package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/varlens/internal/config"
)

// options holds the persistent flags shared by every command.
type options struct {
	snapshot string
	metadata string
	elf      string
	frame    string
	format   string
	config   string

	ignoreEnv bool

	stdout io.Writer
	stderr io.Writer

	store  *config.Store
	cfg    config.Config
	logger *logrus.Logger
}

// flagPaths maps persistent flags onto configuration paths. Flags the user
// set land in the arguments layer.
var flagPaths = map[string]string{
	"log-level":          "logging.level",
	"log-format":         "logging.format",
	"max-depth":          "limits.max_depth",
	"max-array-elements": "limits.max_array_elements",
	"max-string-scan":    "limits.max_string_scan",
	"dap":                "dap.address",
	"dap-timeout":        "dap.timeout",
	"scripts":            "scripts.dir",
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "varlens",
		Short:         "Inspect variables of a stopped C/C++ program",
		Long:          "varlens resolves variables against type metadata and target memory and renders them as text or JSON.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.loadConfig(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.snapshot, "snapshot", "s", "", "memory snapshot file (cbor)")
	pf.StringVarP(&opts.metadata, "metadata", "m", "", "type metadata file (toml, yaml or json)")
	pf.StringVar(&opts.elf, "elf", "", "ELF executable with DWARF debug information")
	pf.StringVarP(&opts.frame, "frame", "f", "", "stack frame as function or function@base")
	pf.StringVarP(&opts.format, "format", "o", "text", "output format: text, json or compact")
	pf.StringVarP(&opts.config, "config", "c", "", "workspace configuration file")
	pf.BoolVar(&opts.ignoreEnv, "ignore-env", false, "ignore VARLENS_* environment settings")
	pf.String("log-level", "", "log level (trace, debug, info, warning, error)")
	pf.String("log-format", "", "log format: text or json")
	pf.Int("max-depth", 0, "maximum pointer dereference depth")
	pf.Int("max-array-elements", 0, "maximum array elements per array")
	pf.Int("max-string-scan", 0, "maximum bytes scanned for a C string")
	pf.String("dap", "", "debug adapter address (host:port) to read memory from")
	pf.String("dap-timeout", "", "timeout of each debug adapter memory read")
	pf.String("scripts", "", "directory of Lua summarizer scripts")

	root.AddCommand(
		newInspectCmd(opts),
		newGlobalsCmd(opts),
		newLocalsCmd(opts),
		newWatchCmd(opts),
		newVisualizeCmd(opts),
		newTypesCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// loadConfig builds the layered configuration and the logger.
func (o *options) loadConfig(cmd *cobra.Command) error {
	var copts []config.Option
	if o.config != "" {
		copts = append(copts, config.WithWorkspaceFile(o.config))
	}
	o.store = config.New(copts...)

	flags := cmd.Flags()
	for name, path := range flagPaths {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "int":
			n, _ := flags.GetInt(name)
			o.store.Set(path, int64(n))
		default:
			o.store.Set(path, f.Value.String())
		}
	}

	if err := o.store.Load(cmd.Context()); err != nil {
		return err
	}
	if o.ignoreEnv {
		if err := o.store.Reset(config.LayerEnv); err != nil {
			return err
		}
	}
	cfg, err := o.store.Config()
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger(o.stderr)
	if err != nil {
		return err
	}
	for _, key := range o.store.Unknown() {
		logger.WithField("setting", key).Warn("unknown configuration setting")
	}
	o.cfg = cfg
	o.logger = logger

	switch o.format {
	case "text", "json", "compact":
	default:
		return fmt.Errorf("unknown output format %q", o.format)
	}
	return nil
}
