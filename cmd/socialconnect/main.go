package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/social-connect/internal/cli"
)

const appName = "Social Connect"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if wantsBanner(os.Args[1:]) {
		displayAppname(appName)
	}
	return cli.Execute()
}

// wantsBanner shows the banner for the long running serve command only, so
// scripted output such as `token` stays clean.
func wantsBanner(args []string) bool {
	return len(args) > 0 && args[0] == "serve"
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
