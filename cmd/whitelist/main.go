// Command whitelist reads an HTML fragment from a file or stdin and
// writes the cleaned fragment to stdout.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/njchilds90/whitelist"
	"github.com/njchilds90/whitelist/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

// ErrInputTooLarge is returned when the input exceeds --max-bytes.
var ErrInputTooLarge = errors.New("input exceeds size limit")

const defaultMaxBytes = 1 << 20

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "whitelist [file]",
		Short: "Clean an HTML fragment against a tag and attribute allow-list.",
		Long: `whitelist removes every tag, attribute and URL scheme that is not
explicitly allowed from an HTML fragment. Disallowed tags are unwrapped,
script and style blocks are removed with their content.

The fragment is read from the named file, or from stdin when no file is
given. A custom policy can be supplied as a YAML document with --policy.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, v)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.whitelist.yaml)")
	flags.String("policy", "", "YAML policy file (default is the built-in policy)")
	flags.Bool("strict", false, "use the strict built-in policy")
	flags.Bool("text", false, "print the text content instead of HTML")
	flags.Int64("max-bytes", defaultMaxBytes, "maximum input size in bytes (0 for unlimited)")
	flags.String("log-level", "warn", `log level ("debug", "info", "warn", "error")`)
	flags.String("log-format", logger.FormatText, `log format ("text", "json")`)

	v.BindPFlag("policy", flags.Lookup("policy"))
	v.BindPFlag("strict", flags.Lookup("strict"))
	v.BindPFlag("text", flags.Lookup("text"))
	v.BindPFlag("max-bytes", flags.Lookup("max-bytes"))
	v.BindPFlag("log.level", flags.Lookup("log-level"))
	v.BindPFlag("log.format", flags.Lookup("log-format"))

	return cmd
}

// initConfig reads the config file and binds WHITELIST_* environment
// variables. A missing default config file is not an error.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".whitelist")
	}

	v.SetEnvPrefix("WHITELIST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func run(cmd *cobra.Command, args []string, v *viper.Viper) error {
	log := logger.New(logger.Config{
		Level:   v.GetString("log.level"),
		Format:  v.GetString("log.format"),
		Output:  cmd.ErrOrStderr(),
		Service: "whitelist",
	})

	policy, source, err := loadPolicy(v)
	if err != nil {
		log.Error("load policy", "error", err)
		return err
	}
	log.Debug("policy loaded", "source", source, "tags", len(policy.Tags), "max_depth", policy.MaxDepth)

	in, name := cmd.InOrStdin(), "stdin"
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			log.Error("open input", "error", err)
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in, name = f, args[0]
	}

	data, err := readLimited(in, v.GetInt64("max-bytes"))
	if err != nil {
		log.Error("read input", "input", name, "error", err)
		return fmt.Errorf("read %s: %w", name, err)
	}

	start := time.Now()
	w := whitelist.New(policy)
	var out string
	if v.GetBool("text") {
		out, err = w.StripTags(string(data))
	} else {
		out, err = w.Clean(string(data))
	}
	if err != nil {
		log.Error("clean", "input", name, "error", err)
		return err
	}
	log.Debug("cleaned", "input", name, "in_bytes", len(data), "out_bytes", len(out), "took", time.Since(start))

	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

// loadPolicy picks the policy named by the configuration and returns it
// together with a description of where it came from.
func loadPolicy(v *viper.Viper) (*whitelist.Policy, string, error) {
	if path := v.GetString("policy"); path != "" {
		p, err := whitelist.LoadPolicyFile(path, whitelist.DefaultRegistry())
		return p, path, err
	}
	if v.GetBool("strict") {
		return whitelist.StrictPolicy(), "strict", nil
	}
	return whitelist.DefaultPolicy(), "default", nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w of %d bytes", ErrInputTooLarge, max)
	}
	return data, nil
}
