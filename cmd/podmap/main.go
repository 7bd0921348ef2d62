package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/eigerco/podmap/pkg/db"
	"github.com/eigerco/podmap/pkg/db/memory"
	"github.com/eigerco/podmap/pkg/db/pebble"
	"github.com/eigerco/podmap/pkg/log"
	"github.com/eigerco/podmap/pkg/podmap"
)

// main opens a book map and either runs the demo or an interactive shell.
// go run ./cmd/podmap -dir database_dir demo
func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the process exit code. The map is closed before it returns.
func run(args []string, stdout io.Writer) int {
	flags := flag.NewFlagSet("podmap", flag.ContinueOnError)
	dir := flags.String("dir", "database_dir", "database directory")
	create := flags.Bool("create", true, "create the database if it does not exist")
	cache := flags.Int64("cache", 8<<20, "cache budget in bytes, 0 disables the block cache")
	engineName := flags.String("engine", "pebble", "storage engine: pebble or memory")
	sync := flags.Bool("sync", false, "fsync every write")
	logLevel := flags.String("log-level", "info", "log level: debug, info, warn, error")
	logType := flags.String("log-type", "console", "log format: console or json")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	level, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		return 2
	}
	loggerType, err := log.ParseLoggerType(*logType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log type: %v\n", err)
		return 2
	}
	log.Init(log.Options{LogLevel: level, Type: loggerType, Output: os.Stderr})

	engine, err := openerFor(*engineName)
	if err != nil {
		log.CLI.Error().Err(err).Msg("invalid engine")
		return 2
	}

	books := podmap.New[uint64, Book](podmap.Uint64Key{}, podmap.WithEngine(engine))
	if err := books.Open(*dir, *create, *cache); err != nil {
		log.CLI.Error().Err(err).Str("dir", *dir).Msg("open failed")
		return 1
	}

	switch mode := flags.Arg(0); mode {
	case "demo":
		err = runDemo(books, stdout, *sync)
	case "", "shell":
		err = runShell(books, *dir, *sync)
	default:
		err = fmt.Errorf("unknown mode %q, want demo or shell", mode)
	}
	if closeErr := books.Close(); closeErr != nil {
		log.CLI.Error().Err(closeErr).Msg("close failed")
		if err == nil {
			return 1
		}
	}
	if err != nil {
		log.CLI.Error().Err(err).Msg("podmap failed")
		return 1
	}
	return 0
}

func openerFor(name string) (db.Opener, error) {
	switch name {
	case "pebble":
		return pebble.Open, nil
	case "memory":
		return memory.Open, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
