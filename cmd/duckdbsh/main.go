package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"regalado.ph/database/duckdbgo"
)

type options struct {
	Name    string `short:"n" long:"name" env:"DUCKDB_NAME" description:"logical database name" default:":memory:"`
	Dir     string `short:"d" long:"dir" env:"DUCKDB_DIR" description:"directory for database files" default:"."`
	SeedDir string `long:"seed-dir" env:"DUCKDB_SEED_DIR" description:"read-only directory with pre-built databases"`

	Query   string   `short:"q" long:"query" description:"run one query and print JSON rows"`
	Exec    string   `short:"e" long:"exec" description:"run one statement and print the change count"`
	Params  []string `short:"p" long:"param" description:"positional string parameter for --query"`
	Tables  bool     `long:"tables" description:"list tables and exit"`
	Version bool     `long:"version" description:"print engine version and exit"`

	Dbg bool `long:"dbg" description:"debug mode"`
}

var revision = "latest"

func main() {
	fmt.Printf("duckdbsh %s\n", revision)

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			os.Exit(1)
		}
		os.Exit(2)
	}
	setupLog(opts.Dbg)

	if err := run(opts); err != nil {
		if opts.Dbg {
			log.Panicf("[ERROR] %v", err)
		}
		fmt.Printf("failed: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	st := time.Now()

	mgr := duckdb.DefaultManager(opts.Dir, opts.SeedDir)
	defer mgr.CloseAll()

	if opts.Version {
		fmt.Printf("engine: %s\n", mgr.Version())
		return nil
	}

	if err := mgr.Open(opts.Name); err != nil {
		return fmt.Errorf("can't open database %q: %w", opts.Name, err)
	}

	switch {
	case opts.Tables:
		tables, err := mgr.ListTables(opts.Name)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Println(t)
		}
	case opts.Exec != "":
		changes, err := mgr.Execute(opts.Name, opts.Exec)
		if err != nil {
			return err
		}
		fmt.Printf("changes: %d in %v\n", changes, time.Since(st).Truncate(time.Millisecond))
	case opts.Query != "":
		if err := printQuery(mgr, opts.Name, opts.Query, opts.Params); err != nil {
			return err
		}
	default:
		return repl(mgr, opts.Name, os.Stdin)
	}
	return nil
}

func printQuery(mgr *duckdb.Manager, name, query string, params []string) error {
	var rows []map[string]any
	var err error
	if len(params) > 0 {
		args := make([]any, len(params))
		for i, p := range params {
			args[i] = p
		}
		rows, err = mgr.QueryWithParams(name, query, args)
	} else {
		rows, err = mgr.Query(name, query)
	}
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// repl reads semicolon-free statements line by line; SELECT-ish lines print
// rows, anything else prints the change count.
func repl(mgr *duckdb.Manager, name string, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), ";"))
		switch {
		case line == "":
		case strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit"):
			return nil
		case isQuery(line):
			if err := printQuery(mgr, name, line, nil); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		default:
			changes, err := mgr.Execute(name, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			} else {
				fmt.Printf("changes: %d\n", changes)
			}
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func isQuery(sql string) bool {
	head := strings.ToUpper(sql)
	for _, kw := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "PRAGMA", "FROM"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
