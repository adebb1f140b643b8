// Command consolehost is a minimal embedder: it stands up one console.VM,
// registers the bundled native-function packages, and either runs a single
// script file to completion or drops into an interactive read-eval-print
// loop, the way the teacher's cmd/barn mixes one-shot inspection flags with
// a long-running server entry point.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"ember/console"
	"ember/console/nativecrypto"

	"github.com/chzyer/readline"
)

func main() {
	scriptPath := flag.String("run", "", "run a script file to completion and exit")
	maxFibers := flag.Int("max-fibers", 0, "cap on concurrently live fibers (0 = unlimited)")
	warnUndefined := flag.Bool("warn-undefined-vars", false, "set Config.WarnUndefinedVars (stored only; undefined reads are not logged)")
	historyPath := flag.String("history", "", "readline history file (default: no persistent history)")
	flag.Parse()

	cfg := console.Config{
		Log:               func(line string) { log.Print(line) },
		MaxFibers:         *maxFibers,
		WarnUndefinedVars: *warnUndefined,
		EnableExceptions:  true,
		EnableTuples:      true,
	}
	c := console.New(cfg)
	nativecrypto.Register(c)

	if *scriptPath != "" {
		runFile(c, *scriptPath)
		return
	}

	repl(c, *historyPath)
}

func runFile(c *console.VM, path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("reading %s: %v", path, err)
	}
	result, err := c.Exec(path, string(src))
	if err != nil {
		log.Fatalf("%s: %v", path, err)
	}
	fmt.Println(c.StringOf(result))
}

// repl runs an interactive loop: each line the user enters is compiled and
// run to completion as its own fiber, with the result printed the way a
// console session on the original engine echoes an eval result back.
func repl(c *console.VM, historyPath string) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ember> ",
		HistoryFile:     historyPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "^D",
	})
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	defer rl.Close()

	count := 0
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("readline: %v", err)
			return
		}
		if line == "" {
			continue
		}

		count++
		name := fmt.Sprintf("<console:%d>", count)
		result, err := c.Exec(name, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(c.StringOf(result))
	}
}
