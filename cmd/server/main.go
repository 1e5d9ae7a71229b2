package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the card counting trainer server"`
	Version VersionCmd `cmd:"" help:"Show version"`
}

func main() {
	// A .env file is optional; its values feed the env-backed flags.
	godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("count-jack"),
		kong.Description("Blackjack card counting trainer backend"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
