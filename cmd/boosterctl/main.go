// Command boosterctl reads the booster store and prepares, submits and
// confirms purchases. Signing happens elsewhere: prepare commands print
// unsigned transactions, and submit takes signed ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/code-boost/pkg/boost"
	"github.com/code-payments/code-boost/pkg/metrics"
	"github.com/code-payments/code-boost/pkg/rate"
	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/accounts"
)

var configPath = flag.String("config", "boosterctl.yaml", "configuration file path")

type env struct {
	ctx     context.Context
	store   *accounts.Store
	service *boost.Service
}

type command struct {
	usage string
	run   func(e *env, args []string) error
}

var commands = map[string]command{
	"store":           {"store", runStore},
	"boosters":        {"boosters [-owner <address>] [-active]", runBoosters},
	"derive":          {"derive [-buyer <address> -counter <n>]", runDerive},
	"metadata":        {"metadata -mint <address>", runMetadata},
	"prepare-booster": {"prepare-booster -buyer <address> -type <xp|points|combo> -hours <n>", runPrepareBooster},
	"prepare-pack":    {"prepare-pack -buyer <address> -size <small|large>", runPreparePack},
	"submit":          {"submit -tx <base64>", runSubmit},
	"confirm":         {"confirm -sig <signature>", runConfirm},
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	conf, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Error("failed to load config")
		os.Exit(1)
	}

	ctx := context.Background()
	var metricsProvider *newrelic.Application
	if len(conf.NewRelicLicenseKey) > 0 {
		metricsProvider, err = newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(conf.AppName),
			newrelic.ConfigLicense(conf.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logrus.WithError(err).Error("error connecting to new relic")
			os.Exit(1)
		}
		defer metricsProvider.Shutdown(defaultShutdownTimeout)

		ctx = metrics.WithApplication(ctx, metricsProvider)
	}
	configureLogger(conf, metricsProvider)

	client := solana.New(
		conf.RPCEndpoint,
		solana.WithRateLimiter(rate.NewLocalRateLimiter(xrate.Limit(conf.RPCRateLimit))),
	)
	service, err := boost.New(client, boost.WithOverrides(conf.overrides()))
	if err != nil {
		logrus.WithError(err).Error("failed to create boost service")
		os.Exit(1)
	}

	e := &env{
		ctx:     ctx,
		store:   accounts.NewStore(client),
		service: service,
	}
	if err := cmd.run(e, flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func loadConfig() (config, error) {
	if _, err := os.Stat(*configPath); err == nil {
		viper.SetConfigFile(*configPath)
		if err := viper.ReadInConfig(); err != nil {
			return config{}, err
		}
	} else if !os.IsNotExist(err) {
		return config{}, err
	}

	c := defaultConfig
	if err := viper.Unmarshal(&c); err != nil {
		return config{}, err
	}
	return c, nil
}

func configureLogger(c config, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", c.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stderr)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: boosterctl [-config <path>] <command> [flags]\n\ncommands:\n")
	for _, name := range []string{"store", "boosters", "derive", "metadata", "prepare-booster", "prepare-pack", "submit", "confirm"} {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}
