// Package session ties one run together: its configuration, counters,
// definition table and program. Nothing here is global; two sessions never
// share state.
package session

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"gobf/pkg/bitmap"
	"gobf/pkg/compiler"
	"gobf/pkg/config"
	"gobf/pkg/instr"
	"gobf/pkg/metrics"
	"gobf/pkg/objfile"
	"gobf/pkg/tape"
	"gobf/pkg/utils"
	"gobf/pkg/vm"
)

var log = commonlog.GetLogger("gobf.session")

type Session struct {
	Config   *config.Config
	Counters *metrics.Counters
	Compiler *compiler.Compiler
	Program  *instr.Program

	// Path is the absolute path of the loaded program, empty for inline source.
	Path string
	Kind utils.ProgramKind
}

// New returns an empty session. A nil cfg selects config.Default().
func New(cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{Config: cfg, Counters: &metrics.Counters{}}
	s.Compiler = compiler.NewCompiler(s.CompilerOptions(), s.Counters)
	return s
}

func (s *Session) CompilerOptions() compiler.Options {
	return compiler.Options{MaxExpansionDepth: s.Config.Limits.MaxExpansionDepth}
}

// reset starts a new run: zeroed counters and an empty definition table.
func (s *Session) reset() {
	s.Counters.Reset()
	s.Compiler = compiler.NewCompiler(s.CompilerOptions(), s.Counters)
	s.Program = nil
}

// Load reads and compiles the program at path, picking the reader from the
// file extension. Anything loaded before is discarded.
func (s *Session) Load(path string) error {
	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return err
	}
	s.reset()
	s.Path = fullPath
	s.Kind = utils.DetectKind(fullPath)
	log.Debugf("loading %s program %s", s.Kind, fullPath)

	switch s.Kind {
	case utils.KindBitmap:
		f, err := os.Open(fullPath)
		if err != nil {
			return err
		}
		defer f.Close()
		ops, err := bitmap.Read(f, s.Config.Bitmap.BlockSide)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		s.Program, err = s.Compiler.CompileOps(ops)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

	case utils.KindObject:
		o, err := objfile.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		c, err := o.Compiler(s.CompilerOptions(), s.Counters)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		s.Compiler = c
		s.Program = o.Program

	default:
		src, err := os.ReadFile(fullPath)
		if err != nil {
			return err
		}
		if err := s.LoadSource(string(src)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// LoadSource compiles program text, replacing any loaded program.
func (s *Session) LoadSource(src string) error {
	s.reset()
	prog, err := s.Compiler.Compile(src)
	if err != nil {
		return err
	}
	s.Program = prog
	return nil
}

// Check validates the program at path without running or building it.
func Check(path string, cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}
	switch utils.DetectKind(path) {
	case utils.KindSource:
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return compiler.Check(string(src), compiler.Options{MaxExpansionDepth: cfg.Limits.MaxExpansionDepth})
	default:
		// Images and object files carry no declarations to expand; loading
		// them already checks every loop.
		return New(cfg).Load(path)
	}
}

// Flat returns the program with every function call inlined.
func (s *Session) Flat() (*instr.Program, error) {
	if s.Program == nil {
		return nil, fmt.Errorf("no program loaded")
	}
	if !s.Program.HasCalls() {
		return s.Program, nil
	}
	return s.Compiler.Flatten(s.Program)
}

// NewTape returns an empty tape shaped by the configuration.
func (s *Session) NewTape() *tape.Tape {
	return tape.New(s.Config.Tape.Size, uint8(s.Config.Tape.CellMax))
}

// NewVM returns a VM with the session program loaded on a fresh tape.
func (s *Session) NewVM(in io.Reader, out io.Writer) *vm.VM {
	v := vm.NewVM(s.NewTape(), s.Counters)
	v.Input = in
	v.Output = out
	v.Functions = s.Compiler
	v.MaxCallDepth = s.Config.Limits.MaxCallDepth
	if s.Program != nil {
		v.Load(s.Program)
	}
	return v
}

// Translate writes the flattened program as a bitmap image.
func (s *Session) Translate(w io.Writer, f bitmap.Format) error {
	flat, err := s.Flat()
	if err != nil {
		return err
	}
	return bitmap.Write(w, flat.Ops(), s.Config.Bitmap.BlockSide, f)
}

// Object returns the program as object file bytes.
func (s *Session) Object() ([]byte, error) {
	if s.Program == nil {
		return nil, fmt.Errorf("no program loaded")
	}
	return objfile.Marshal(objfile.New(s.Program, s.Compiler))
}

// Report writes the tape dump followed by the metrics block.
func Report(w io.Writer, t *tape.Tape, c *metrics.Counters) error {
	var buf bytes.Buffer
	buf.WriteString(t.String())
	if err := c.Report(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
