package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gobf/pkg/config"
	"gobf/pkg/errs"
	"gobf/pkg/grid"
	"gobf/pkg/session"
	"gobf/pkg/utils"
)

var log = commonlog.GetLogger("gobf.desktop")

const (
	cols      = 16
	rows      = 16
	cellSize  = 32
	textLines = 6
	screenW   = cols * cellSize
	screenH   = rows*cellSize + textLines*16
)

var (
	background = color.RGBA{0x20, 0x20, 0x28, 0xff}
	pointer    = color.RGBA{0xe0, 0x60, 0x20, 0xff}
)

type Game struct {
	run          *runner
	stepsPerTick int
	snapshotPath string
	cellImg      *ebiten.Image
}

func (g *Game) Update() error {
	// Space toggles the pause unless the program is waiting for a key. Keys
	// typed while paused are commands, not program input.
	for _, r := range ebiten.AppendInputChars(nil) {
		if r < 0x80 && !g.run.paused && (r != ' ' || g.run.waiting) {
			g.run.keys.Push(byte(r))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) && !g.run.paused {
		g.run.keys.Push('\n')
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) && !g.run.waiting {
		g.run.paused = !g.run.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) && g.run.paused {
		if err := g.run.vm.SnapshotToFile(g.snapshotPath); err != nil {
			log.Errorf("snapshot: %s", err)
		} else {
			log.Infof("saved %s", g.snapshotPath)
		}
	}
	g.run.tick(g.stepsPerTick)
	return nil
}

// firstCell keeps the pointer on the visible page of cells.
func (g *Game) firstCell() int {
	page := cols * rows
	return g.run.vm.Tape.Pointer() / page * page
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.cellImg == nil {
		g.cellImg = ebiten.NewImage(cellSize-2, cellSize-2)
	}
	screen.Fill(background)

	t := g.run.vm.Tape
	first := g.firstCell()
	for i := 0; i < cols*rows && first+i < t.Len(); i++ {
		idx := first + i
		x, y := grid.GetGridCoords(i, cols)
		v := t.Cell(idx)
		shade := uint8(0x30 + int(v)*0xcf/int(max(t.Max(), 1)))
		c := color.RGBA{shade / 2, shade, shade / 2, 0xff}
		if idx == t.Pointer() {
			c = pointer
		}
		g.cellImg.Fill(c)
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(x*cellSize+1), float64(y*cellSize+1))
		screen.DrawImage(g.cellImg, op)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d", v), x*cellSize+3, y*cellSize+8)
	}

	c := g.run.vm.Counters
	text := fmt.Sprintf("cells %d-%d  ptr=%d  depth=%d  %s\nEXEC_MOVE=%d DATA_MOVE=%d DATA_READ=%d DATA_WRITE=%d\nspace: pause  s: snapshot while paused\n%s",
		first, first+cols*rows-1, t.Pointer(), g.run.vm.Depth(), g.run.status(),
		c.ExecMove, c.DataMove, c.DataRead, c.DataWrite, tail(g.run.output.String(), 3))
	ebitenutil.DebugPrintAt(screen, text, 4, rows*cellSize+4)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW, screenH
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			lines++
			if lines == n {
				return s[i+1:]
			}
		}
	}
	return s
}

func main() {
	configPath := flag.String("config", "", "configuration file")
	restore := flag.String("restore", "", "resume from a snapshot")
	speed := flag.Int("speed", 50, "instructions per frame")
	verbosity := flag.Int("v", 0, "log verbosity")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [flags] <program>")
		os.Exit(2)
	}
	commonlog.Configure(*verbosity, nil)

	fullPath, baseDir, err := utils.GetPathInfo(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(errs.ExitIO)
	}
	var cfg *config.Config
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FindAndLoad(baseDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(errs.ExitIO)
	}

	s := session.New(cfg)
	if err := s.Load(fullPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", errs.Kind(err), err)
		os.Exit(errs.ExitCode(err))
	}
	v := s.NewVM(nil, nil)
	if *restore != "" {
		if err := v.RestoreFromFile(*restore); err != nil {
			fmt.Fprintf(os.Stderr, "restore: %v\n", err)
			os.Exit(errs.ExitIO)
		}
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("gobf - " + flag.Arg(0))

	game := &Game{
		run:          newRunner(v),
		stepsPerTick: *speed,
		snapshotPath: utils.SiblingPath(fullPath, ".snap"),
	}
	if err := ebiten.RunGame(game); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(errs.ExitIO)
	}
	os.Stdout.Write(game.run.output.Bytes())
}
