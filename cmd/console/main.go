package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"gobf/pkg/config"
	"gobf/pkg/errs"
	"gobf/pkg/session"
	"gobf/pkg/utils"
)

var errInterrupted = errors.New("interrupted")

// rawInput reads single key presses from a terminal in raw mode. Typed keys
// are echoed, Enter is delivered as '\n', Ctrl-D ends input and Ctrl-C
// aborts the run.
type rawInput struct {
	in   io.Reader
	echo io.Writer
}

func (r *rawInput) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.in.Read(p[:1])
	if n == 0 {
		return 0, err
	}
	switch p[0] {
	case 0x03:
		return 0, errInterrupted
	case 0x04:
		return 0, io.EOF
	case '\r':
		p[0] = '\n'
	}
	r.echo.Write(p[:1])
	return 1, nil
}

// crlfWriter turns '\n' into "\r\n" while the terminal is raw.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "configuration file")
	snapshot := flag.String("snapshot", "", "save the VM state to this file when the run stops")
	restore := flag.String("restore", "", "resume from a snapshot taken of the same program")
	verbosity := flag.Int("v", 0, "log verbosity")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: console [flags] <program>")
		return 2
	}
	commonlog.Configure(*verbosity, nil)

	filename := flag.Arg(0)
	fullPath, baseDir, err := utils.GetPathInfo(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return errs.ExitIO
	}

	var cfg *config.Config
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FindAndLoad(baseDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return errs.ExitIO
	}

	s := session.New(cfg)
	if err := s.Load(fullPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", errs.Kind(err), err)
		return errs.ExitCode(err)
	}

	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot enter raw mode: %v\n", err)
			return errs.ExitIO
		}
		defer term.Restore(fd, oldState)
		out = crlfWriter{w: os.Stdout}
		in = &rawInput{in: os.Stdin, echo: out}
	}

	v := s.NewVM(in, out)
	if *restore != "" {
		if err := v.RestoreFromFile(*restore); err != nil {
			fmt.Fprintf(out, "restore: %v\n", err)
			return errs.ExitIO
		}
	}

	runErr := v.Run()

	if *snapshot != "" {
		if err := v.SnapshotToFile(*snapshot); err != nil {
			fmt.Fprintf(out, "snapshot: %v\n", err)
		}
	}

	fmt.Fprintln(out)
	if runErr != nil {
		fmt.Fprintf(out, "%s: %v\n", errs.Kind(runErr), runErr)
		if errors.Is(runErr, errInterrupted) {
			return 130
		}
		return errs.ExitCode(runErr)
	}
	if err := session.Report(out, v.Tape, s.Counters); err != nil {
		return errs.ExitIO
	}
	return errs.ExitOK
}
