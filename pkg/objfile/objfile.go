// Package objfile stores compiled programs as CBOR object files (.bfo).
//
// An object file holds the resolved main program and the declarations it was
// compiled with, so deferred function calls can be expanded again at run time
// without the source.
package objfile

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"gobf/pkg/compiler"
	"gobf/pkg/instr"
	"gobf/pkg/metrics"
)

const (
	Magic     = "GOBF"
	Version   = 1
	Extension = ".bfo"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("objfile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Declaration is a saved macro, procedure or function.
type Declaration struct {
	Name   string           `cbor:"1,keyasint"`
	Kind   compiler.DefKind `cbor:"2,keyasint"`
	Params []string         `cbor:"3,keyasint,omitempty"`
	Body   string           `cbor:"4,keyasint"`
}

// Object is the content of an object file.
type Object struct {
	Magic        string         `cbor:"1,keyasint"`
	Version      int            `cbor:"2,keyasint"`
	Program      *instr.Program `cbor:"3,keyasint"`
	Declarations []Declaration  `cbor:"4,keyasint,omitempty"`
}

// New captures prog together with every declaration known to c.
func New(prog *instr.Program, c *compiler.Compiler) *Object {
	o := &Object{Magic: Magic, Version: Version, Program: prog}
	if c == nil {
		return o
	}
	for _, def := range c.Defs.All() {
		o.Declarations = append(o.Declarations, Declaration{
			Name:   def.Name,
			Kind:   def.Kind,
			Params: def.Params,
			Body:   def.Body,
		})
	}
	return o
}

// Marshal serializes an Object to canonical CBOR bytes.
func Marshal(o *Object) ([]byte, error) {
	return cborEncMode.Marshal(o)
}

// Unmarshal deserializes and checks an Object.
func Unmarshal(data []byte) (*Object, error) {
	var o Object
	if err := cbor.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("objfile: unmarshal: %w", err)
	}
	if o.Magic != Magic {
		return nil, fmt.Errorf("objfile: bad magic %q", o.Magic)
	}
	if o.Version != Version {
		return nil, fmt.Errorf("objfile: unsupported version %d", o.Version)
	}
	if o.Program == nil {
		return nil, fmt.Errorf("objfile: no program")
	}
	if err := o.Program.Validate(); err != nil {
		return nil, fmt.Errorf("objfile: %w", err)
	}
	return &o, nil
}

// Compiler returns a compiler whose definition table holds the saved
// declarations, ready to resolve the program's calls. The program's size is
// added to counters.
func (o *Object) Compiler(opts compiler.Options, counters *metrics.Counters) (*compiler.Compiler, error) {
	c := compiler.NewCompiler(opts, counters)
	for _, d := range o.Declarations {
		def := &compiler.Definition{Name: d.Name, Kind: d.Kind, Params: d.Params, Body: d.Body}
		if err := c.Defs.Declare(def); err != nil {
			return nil, fmt.Errorf("objfile: %w", err)
		}
	}
	c.Counters.ProgSize += int64(o.Program.Size())
	return c, nil
}

// WriteFile marshals o to path.
func WriteFile(path string, o *Object) error {
	data, err := Marshal(o)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads and checks the object file at path.
func ReadFile(path string) (*Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
