//go:build !js

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gobf/pkg/backend"
	"gobf/pkg/bitmap"
	"gobf/pkg/config"
	"gobf/pkg/errs"
	"gobf/pkg/metrics"
	"gobf/pkg/session"
	"gobf/pkg/utils"
)

var log = commonlog.GetLogger("gobf")

type options struct {
	program    string
	input      string
	output     string
	rewrite    bool
	long       bool
	check      bool
	translate  bool
	format     string
	trace      bool
	toC        bool
	compile    string
	configPath string
	metricsDB  string
	history    int
	verbosity  int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("gobf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.program, "p", "", "program file: source text, .bmp/.png image or .bfo object")
	fs.StringVar(&o.input, "i", "", "read program input from this file instead of stdin")
	fs.StringVar(&o.output, "o", "", "write program output to this file instead of stdout")
	fs.BoolVar(&o.rewrite, "rewrite", false, "print the program in short syntax")
	fs.BoolVar(&o.long, "long", false, "with -rewrite, print one long-form word per line")
	fs.BoolVar(&o.check, "check", false, "check that every loop is balanced")
	fs.BoolVar(&o.translate, "translate", false, "write the program as an image to stdout")
	fs.StringVar(&o.format, "format", "bmp", "image format for -translate: bmp or png")
	fs.BoolVar(&o.trace, "trace", false, "run and log every step to a .log file next to the program")
	fs.BoolVar(&o.toC, "to-c", false, "write the program as C source to a .c file next to the program")
	fs.StringVar(&o.compile, "compile", "", "write the compiled program to this object file")
	fs.StringVar(&o.configPath, "config", "", "configuration file (default: gobf.toml above the program)")
	fs.StringVar(&o.metricsDB, "metrics-db", "", "record runs in this sqlite database")
	fs.IntVar(&o.history, "history", 0, "print the last N recorded runs and exit")
	fs.IntVar(&o.verbosity, "v", -1, "log verbosity, overrides the configuration")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadConfig(o *options) (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	dir := "."
	if o.program != "" {
		_, parent, err := utils.GetPathInfo(o.program)
		if err != nil {
			return nil, err
		}
		dir = parent
	}
	return config.FindAndLoad(dir)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return errs.ExitIO
	}
	verbosity := cfg.Log.Verbosity
	if o.verbosity >= 0 {
		verbosity = o.verbosity
	}
	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(verbosity, logPath)

	dbPath := cfg.Metrics.Database
	if o.metricsDB != "" {
		dbPath = o.metricsDB
	}

	if o.history > 0 {
		return printHistory(dbPath, o.history, stdout, stderr)
	}

	if o.program == "" {
		fmt.Fprintln(stderr, "nothing to do: provide -p <program>")
		return 2
	}

	if err := dispatch(o, cfg, dbPath, stdin, stdout); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", errs.Kind(err), err)
		return errs.ExitCode(err)
	}
	return errs.ExitOK
}

// dispatch runs the requested modes. rewrite, check and translate may be
// combined and never execute the program; otherwise trace, to-c and compile
// replace the plain run.
func dispatch(o *options, cfg *config.Config, dbPath string, stdin io.Reader, stdout io.Writer) error {
	if o.check || o.rewrite || o.translate {
		if o.rewrite {
			if err := rewrite(o.program, o.long, cfg, stdout); err != nil {
				return err
			}
		}
		if o.check {
			if err := session.Check(o.program, cfg); err != nil {
				return err
			}
		}
		if o.translate {
			if err := translate(o.program, o.format, cfg, stdout); err != nil {
				return err
			}
		}
		return nil
	}

	s := session.New(cfg)
	if err := s.Load(o.program); err != nil {
		return err
	}

	switch {
	case o.toC:
		return writeC(s, utils.SiblingPath(o.program, ".c"))
	case o.compile != "":
		data, err := s.Object()
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.compile, data, 0o644); err != nil {
			return err
		}
		log.Infof("wrote object file %s", o.compile)
		return nil
	}

	return execute(s, o, dbPath, stdin, stdout)
}

func rewrite(path string, long bool, cfg *config.Config, stdout io.Writer) error {
	s := session.New(cfg)
	if err := s.Load(path); err != nil {
		return err
	}
	flat, err := s.Flat()
	if err != nil {
		return err
	}
	if long {
		return backend.RewriteLong(stdout, flat)
	}
	return backend.Rewrite(stdout, flat)
}

func translate(path, format string, cfg *config.Config, stdout io.Writer) error {
	s := session.New(cfg)
	if err := s.Load(path); err != nil {
		return err
	}
	f := bitmap.FormatBMP
	if format == "png" {
		f = bitmap.FormatPNG
	}
	return s.Translate(stdout, f)
}

func writeC(s *session.Session, path string) error {
	flat, err := s.Flat()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	opts := backend.COptions{TapeSize: s.Config.Tape.Size, CellMax: s.Config.Tape.CellMax}
	if err := backend.WriteC(w, flat, opts); err != nil {
		return err
	}
	log.Infof("wrote %s", path)
	return w.Flush()
}

// execute runs the loaded program, prints the tape dump and the metrics, and
// records the run when a database is configured.
func execute(s *session.Session, o *options, dbPath string, stdin io.Reader, stdout io.Writer) error {
	in := stdin
	if o.input != "" {
		f, err := os.Open(o.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = bufio.NewReader(f)
	}

	out := bufio.NewWriter(stdout)
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = bufio.NewWriter(f)
	}

	v := s.NewVM(in, out)

	var tw *bufio.Writer
	if o.trace {
		logFile, err := os.Create(utils.SiblingPath(o.program, ".log"))
		if err != nil {
			return err
		}
		defer logFile.Close()
		tw = bufio.NewWriter(logFile)
		v.Tracer = backend.NewTracer(tw)
	}

	started := time.Now()
	runErr := flush(out, v.Run())
	if tw != nil {
		runErr = flush(tw, runErr)
	}

	if dbPath != "" {
		if err := record(dbPath, s.Path, started, runErr, s.Counters); err != nil {
			log.Errorf("%s", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(stdout)
	return session.Report(stdout, v.Tape, s.Counters)
}

// flush empties w. A flush failure is returned only when runErr is nil, so
// the first error of the run wins.
func flush(w *bufio.Writer, runErr error) error {
	if err := w.Flush(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func record(dbPath, program string, started time.Time, runErr error, c *metrics.Counters) error {
	store, err := metrics.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	id, err := store.Record(context.Background(), program, errs.Kind(runErr), started, *c)
	if err != nil {
		return err
	}
	log.Debugf("recorded run %s", id)
	return nil
}

func printHistory(dbPath string, n int, stdout, stderr io.Writer) int {
	if dbPath == "" {
		fmt.Fprintln(stderr, "-history needs -metrics-db or metrics.database in the configuration")
		return 2
	}
	store, err := metrics.OpenStore(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return errs.ExitIO
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), n)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return errs.ExitIO
	}
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "ok"
		}
		fmt.Fprintf(stdout, "%s  %s  %-20s  %s  EXEC_MOVE=%d EXEC_TIME=%.3fms\n",
			r.ID[:8], r.Started.Format(time.RFC3339), outcome, filepath.Base(r.Program),
			r.Counters.ExecMove, r.Counters.ExecTimeMillis())
	}
	return errs.ExitOK
}
