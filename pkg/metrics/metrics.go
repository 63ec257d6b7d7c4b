// Package metrics holds the per-run performance counters and the optional
// sqlite history of past runs.
package metrics

import (
	"fmt"
	"io"
	"time"
)

// Counters are owned by one run. The compiler updates ProgSize, the VM the rest.
type Counters struct {
	ProgSize  int64         `json:"prog_size"`
	ExecTime  time.Duration `json:"exec_time"`
	ExecMove  int64         `json:"exec_move"`
	DataMove  int64         `json:"data_move"`
	DataRead  int64         `json:"data_read"`
	DataWrite int64         `json:"data_write"`
}

func (c *Counters) Reset() { *c = Counters{} }

// ExecTimeMillis returns ExecTime in fractional milliseconds.
func (c *Counters) ExecTimeMillis() float64 {
	return float64(c.ExecTime) / float64(time.Millisecond)
}

// Report writes the counters in the PROG_SIZE / EXEC_TIME / ... block format.
func (c *Counters) Report(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"PROG_SIZE = %d\nEXEC_TIME = %.3f ms\nEXEC_MOVE = %d\nDATA_MOVE = %d\nDATA_READ = %d\nDATA_WRITE = %d\n",
		c.ProgSize,
		c.ExecTimeMillis(),
		c.ExecMove,
		c.DataMove,
		c.DataRead,
		c.DataWrite,
	)
	return err
}
