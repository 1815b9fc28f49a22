package coremain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/miekg/dns"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nocta/stubres/pkg/resolver"
)

type lookupFlags struct {
	c       string
	servers []string
}

var rootCmd = &cobra.Command{
	Use: "stubres",
}

func init() {
	lf := new(lookupFlags)
	lookupCmd := &cobra.Command{
		Use:   "lookup [-c config_file] [-s server]... domain [type]",
		Short: "Resolve a domain name.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(lf, args)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	rootCmd.AddCommand(lookupCmd)
	fs := lookupCmd.Flags()
	fs.StringVarP(&lf.c, "config", "c", "", "config file")
	fs.StringArrayVarP(&lf.servers, "server", "s", nil, "nameserver, overrides the config")
}

func AddSubCmd(c *cobra.Command) {
	rootCmd.AddCommand(c)
}

func Run() error {
	return rootCmd.Execute()
}

func runLookup(lf *lookupFlags, args []string) error {
	cfg, err := loadConfig(lf.c)
	if err != nil {
		if len(lf.servers) == 0 {
			return fmt.Errorf("fail to load config, %w", err)
		}
		cfg = new(Config)
	}
	if len(lf.servers) > 0 {
		cfg.Resolver.Nameservers = lf.servers
	}

	qtype := dns.TypeA
	if len(args) == 2 {
		t, ok := dns.StringToType[strings.ToUpper(args[1])]
		if !ok {
			return fmt.Errorf("unknown query type %q", args[1])
		}
		qtype = t
	}

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	a, err := app.Resolver().Resolve(context.Background(), args[0], qtype)
	if err != nil {
		var nx *resolver.NXDomain
		if errors.As(err, &nx) {
			fmt.Println(nx.Error())
			return nil
		}
		return fmt.Errorf("resolution failed, %w", err)
	}

	fmt.Printf(";; canonical name: %s\n", a.CanonicalName)
	for _, rr := range a.RRSet().RRs() {
		fmt.Println(rr.String())
	}
	return nil
}

// loadConfig load a config from a file. If filePath is empty, it will
// automatically search and load a file which name start with "config".
func loadConfig(filePath string) (*Config, error) {
	v := viper.New()

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	decoderOpt := func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
		cfg.TagName = "yaml"
		cfg.WeaklyTypedInput = true
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
