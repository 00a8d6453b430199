package main

import (
	"fmt"
	"os"

	"rollbook/cmd/rollbook/commands"
)

func main() {
	app := commands.NewApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}
