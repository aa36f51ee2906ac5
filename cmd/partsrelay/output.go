package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

func printSuccess(format string, args ...any) {
	green.Fprintln(os.Stderr, "✓ "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	red.Fprintln(os.Stderr, "✗ "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	yellow.Fprintln(os.Stderr, "⚠ "+fmt.Sprintf(format, args...))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", bold.Sprint(label+":"), fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	cyan.Fprintln(os.Stderr, "→ "+fmt.Sprintf(format, args...))
}
