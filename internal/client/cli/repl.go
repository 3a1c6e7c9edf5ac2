package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

type execIface interface {
	Exec(ctx context.Context, cmd string, args []string) error
}

const helpText = "Available commands: upload, download, meta, delete, dashboard, logs, alllogs, ping, exit"

// runREPL reads commands line by line until EOF or exit. A failing command
// is reported and the loop goes on.
func runREPL(ctx context.Context, a execIface, sc *bufio.Scanner) {
	printlnFn("Welcome to sealbox (type 'help' for commands)")

	for {
		fmt.Print("sealbox> ")
		if !sc.Scan() {
			return
		}
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			if err := a.Exec(ctx, cmd, args); err != nil {
				if errors.Is(err, errUsage) {
					printlnFn(err.Error())
					continue
				}
				printlnFn("Error:", err.Error())
			}
		}
	}
}
