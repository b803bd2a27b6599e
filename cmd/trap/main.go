package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasmtrap/engine"
	"github.com/wippyai/wasmtrap/trap"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to core wasm module")
		funcName    = flag.String("func", "", "Exported function to call (optional)")
		args        = flag.String("args", "", "Comma-separated arguments")
		name        = flag.String("name", "", "Instance name (defaults to the module's own name)")
		demo        = flag.String("demo", "", "Built-in module: "+strings.Join(demoNames(), ", "))
		list        = flag.Bool("list", false, "List exported functions and exit")
		verbose     = flag.Bool("v", false, "Debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" && *demo == "" {
		fmt.Fprintln(os.Stderr, "Usage: trap -wasm <file.wasm> [-func name] [-args 1,2] [-name mod]")
		fmt.Fprintln(os.Stderr, "       trap -demo <"+strings.Join(demoNames(), "|")+"> [-func name] [-args 1,2]")
		fmt.Fprintln(os.Stderr, "       trap -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       trap -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		engine.SetLogger(log.Named("engine"))
		trap.SetLogger(log.Named("trap"))
	}

	bin, label, err := loadBinary(*wasmFile, *demo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(label, bin, *name); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(bin, *name, *funcName, *args, *list); err != nil {
		if errors.Is(err, errTrapped) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// errTrapped reports a call that ended in a trap, already printed.
var errTrapped = errors.New("call trapped")

func run(bin []byte, name, funcName, argStr string, listOnly bool) error {
	ctx := context.Background()

	sess, err := openSession(ctx, bin, name)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	fmt.Printf("Module: %s\n", sess.name)
	fmt.Printf("\nExported functions:\n")
	for _, fn := range sess.funcs {
		fmt.Printf("  %s\n", formatSignature(fn))
	}

	if listOnly {
		return nil
	}

	fn := sess.pick(funcName)
	if fn == nil {
		if funcName != "" {
			return fmt.Errorf("function %q is not exported", funcName)
		}
		fmt.Printf("\nNo function specified and no common entry point found.\n")
		fmt.Printf("Use -func to specify a function to call.\n")
		return nil
	}

	fmt.Printf("\nCalling %s(%s)...\n", fn.Name(), argStr)
	result, err := sess.call(ctx, fn, argStr)
	var tr *trap.Trap
	if errors.As(err, &tr) {
		defer tr.Close()
		view, err := describeTrap(tr)
		if err != nil {
			return err
		}
		fmt.Print(renderTrap(view, term.IsTerminal(int(os.Stdout.Fd()))))
		return errTrapped
	}
	if err != nil {
		return err
	}
	fmt.Printf("Result: %s\n", result)
	return nil
}
