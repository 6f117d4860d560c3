// Command modlink inspects module object files and search paths from the
// command line: resolving modules, reporting clashes, and packing or
// examining object containers.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"

	red  = color.New(color.FgRed).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

func fatal(msg interface{}) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	root := &cobra.Command{
		Use:     "modlink",
		Short:   "Inspect module object files and search paths",
		Version: version,
	}
	root.PersistentFlags().StringSlice("path", nil, "object code directories, in resolution order")
	root.PersistentFlags().StringSlice("libs", nil, "library roots expanded to Name[-Version]/obj directories")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
	for _, flag := range []string{"path", "libs", "verbose"} {
		if err := viper.BindPFlag(flag, root.PersistentFlags().Lookup(flag)); err != nil {
			fatal(err)
		}
	}

	cobra.OnInitialize(initConfig)

	root.AddCommand(
		newPathCmd(),
		newListCmd(),
		newWhichCmd(),
		newClashCmd(),
		newPackCmd(),
		newInfoCmd(),
	)
	if err := root.Execute(); err != nil {
		fatal(err)
	}
}

func initConfig() {
	if home, err := homedir.Dir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetConfigName(".modlink")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("MODLINK")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}
