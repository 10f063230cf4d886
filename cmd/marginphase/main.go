package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

const version = "0.1.0"

var handler = Multi{
	"version":   HandlerFunc(printVersion),
	"-version":  HandlerFunc(printVersion),
	"--version": HandlerFunc(printVersion),
	"phase":     phaseCmd{},
	"lpc":       lpcCmd{},
}

func printVersion(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "marginphase %s\n", version)
	return 0
}

func init() {
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(30)
	}
}

func main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.StandardLogger().Formatter = &log.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand("marginphase", os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
