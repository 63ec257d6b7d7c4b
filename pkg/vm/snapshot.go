package vm

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"gobf/pkg/instr"
	"gobf/pkg/metrics"
)

const snapshotVersion = 1

// frameState records one call frame. The main program has no call site;
// callee programs are re-resolved from theirs on restore.
type frameState struct {
	Call *instr.CallSite `json:"call,omitempty"`
	PC   int             `json:"pc"`
}

// humanReadableState is the JSON part of a snapshot.
type humanReadableState struct {
	Version  int              `json:"version"`
	Taken    time.Time        `json:"taken"`
	TapeSize int              `json:"tape_size"`
	CellMax  uint8            `json:"cell_max"`
	Pointer  int              `json:"pointer"`
	Halted   bool             `json:"halted"`
	Frames   []frameState     `json:"frames"`
	Counters metrics.Counters `json:"counters"`
}

// Snapshot serialises the VM into a zip archive holding state.json (pointer,
// call frames and counters) and tape.cbor (the visited cells).
func (v *VM) Snapshot() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := humanReadableState{
		Version:  snapshotVersion,
		Taken:    time.Now().UTC(),
		TapeSize: v.Tape.Len(),
		CellMax:  v.Tape.Max(),
		Pointer:  v.Tape.Pointer(),
		Halted:   v.Halted,
		Counters: *v.Counters,
	}
	for i, f := range v.frames {
		fs := frameState{PC: f.pc}
		if i > 0 {
			site := f.site
			fs.Call = &site
		}
		state.Frames = append(state.Frames, fs)
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	if err := writeZipEntry(zw, "state.json", jsonData); err != nil {
		return nil, err
	}

	cells, err := cbor.Marshal(v.Tape.Used())
	if err != nil {
		return nil, fmt.Errorf("marshal tape: %w", err)
	}
	if err := writeZipEntry(zw, "tape.cbor", cells); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore loads a snapshot taken by Snapshot. The tape and counters are
// always restored. Call frames are restored only when the VM has a program
// loaded; callee programs are obtained again from Functions.
func (v *VM) Restore(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	fileMap := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "state.json")
	if err != nil {
		return err
	}
	var state humanReadableState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	if state.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", state.Version)
	}

	raw, err := readZipEntry(fileMap, "tape.cbor")
	if err != nil {
		return err
	}
	var cells []uint8
	if err := cbor.Unmarshal(raw, &cells); err != nil {
		return fmt.Errorf("unmarshal tape: %w", err)
	}
	if err := v.Tape.Load(cells, state.Pointer); err != nil {
		return err
	}
	*v.Counters = state.Counters

	if len(v.frames) == 0 || len(state.Frames) == 0 {
		v.Halted = true
		v.frames = v.frames[:0]
		return nil
	}

	frames := []frame{{prog: v.frames[0].prog, pc: state.Frames[0].PC}}
	for _, fs := range state.Frames[1:] {
		if fs.Call == nil {
			return fmt.Errorf("snapshot frame %d has no call site", len(frames))
		}
		if v.Functions == nil {
			return fmt.Errorf("snapshot has calls but no function resolver is set")
		}
		body, err := v.Functions.CompileCall(*fs.Call)
		if err != nil {
			return err
		}
		frames = append(frames, frame{prog: body, pc: fs.PC, site: *fs.Call})
	}
	for i, f := range frames {
		if f.pc < 0 || f.pc > len(f.prog.Code) {
			return fmt.Errorf("snapshot frame %d: pc %d outside program of %d", i, f.pc, len(f.prog.Code))
		}
	}
	v.frames = frames
	v.Halted = state.Halted
	if !v.Halted {
		v.unwind()
	}
	return nil
}

// SnapshotToFile writes the snapshot archive to path.
func (v *VM) SnapshotToFile(path string) error {
	data, err := v.Snapshot()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a snapshot archive from path.
func (v *VM) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return v.Restore(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
