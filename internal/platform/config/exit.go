package config

import (
	"fmt"
	"io"
	"os"
)

// Exitf reports a fatal crabpot command error on stderr and exits with
// code 1. Commands call it when flags, env, or the server call fail.
func Exitf(format string, args ...any) {
	exitf(os.Stderr, os.Exit, format, args...)
}

func exitf(w io.Writer, exit func(int), format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
	exit(1)
}
