package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/creatoros/go-auth-client/internal/config"
)

func main() {
	_ = godotenv.Load()

	c := config.New()
	logger := newLogger(c.GetEnv())

	root := &cobra.Command{
		Use:          "creatoros",
		Short:        "CreatorOS account and session tool",
		SilenceUsage: true,
	}
	root.AddCommand(
		loginCmd(c, logger),
		registerCmd(c, logger),
		logoutCmd(c, logger),
		whoamiCmd(c, logger),
		tokenCmd(c, logger),
		profileCmd(c, logger),
		resetPasswordCmd(c, logger),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	level := zerolog.InfoLevel
	if env == "DEV" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
