// Command hpglemu emulates an HPGL pen plotter: it captures plotter
// output from a vintage instrument on a serial port (or reads a saved
// HPGL file) and renders it to PNG, PDF or SVG.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/plotkit/hpglemu/internal/config"
	"github.com/plotkit/hpglemu/internal/hpgl"
	"github.com/plotkit/hpglemu/internal/render"
	"github.com/plotkit/hpglemu/internal/serialmux"
	"github.com/plotkit/hpglemu/internal/version"
)

var (
	portName    = flag.String("port", "", "serial port the instrument is attached to (e.g. /dev/ttyUSB0)")
	baudRate    = flag.Int("baud", 9600, "serial baud rate")
	parity      = flag.String("parity", "none", "serial parity: none, even or odd")
	inFile      = flag.String("in", "", "read HPGL from a file instead of a serial port")
	cfgPath     = flag.String("config", "", "render config JSON file")
	outDir      = flag.String("out", ".", "output directory for finished plots")
	formatName  = flag.String("format", "png", "output format: png, pdf or svg")
	dumpHPGL    = flag.Bool("dump", false, "save the raw HPGL stream next to each plot")
	strictMode  = flag.Bool("strict", false, "abort the plot on the first bad instruction")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("hpglemu %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	format, err := render.ParseFormat(*formatName)
	if err != nil {
		log.Fatal(err)
	}

	cfg := config.EmptyRenderConfig()
	if *cfgPath != "" {
		cfg, err = config.LoadRenderConfig(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if info, err := os.Stat(*outDir); err != nil || !info.IsDir() {
		log.Fatalf("output directory %q does not exist", *outDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *inFile != "":
		err = runFile(ctx, cfg, format)
	case *portName != "":
		err = runCapture(ctx, cfg, format)
	default:
		log.Fatal("either -port or -in is required")
	}
	if err != nil {
		log.Fatal(err)
	}
}

// interpOptions assembles the interpreter options shared by both modes.
func interpOptions(cfg *config.RenderConfig, extra ...hpgl.Option) []hpgl.Option {
	opts := []hpgl.Option{
		hpgl.WithPalette(cfg.GetPalette()),
		hpgl.WithPageSize(cfg.GetPaperWidthMM(), cfg.GetPaperHeightMM()),
	}
	if *strictMode {
		opts = append(opts, hpgl.WithStrict())
	}
	return append(opts, extra...)
}

// runFile renders a single saved HPGL stream.
func runFile(ctx context.Context, cfg *config.RenderConfig, format render.Format) error {
	canvas, err := render.New(cfg, format)
	if err != nil {
		return err
	}

	f, err := os.Open(*inFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	interp := hpgl.New(canvas, interpOptions(cfg)...)
	if err := interp.Run(ctx, f); err != nil {
		return fmt.Errorf("plot failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(*inFile), filepath.Ext(*inFile))
	out := filepath.Join(*outDir, base+format.Ext())
	if err := canvas.SaveFile(out); err != nil {
		return err
	}
	log.Printf("saved plot to %s", out)
	return nil
}

// plotSession is one plot in progress: a canvas, the interpreter
// drawing on it, and the canonical text of the instructions applied.
type plotSession struct {
	canvas  *render.Canvas
	interp  *hpgl.Interpreter
	dump    bytes.Buffer
	started time.Time
	sawWork bool
}

func newSession(cfg *config.RenderConfig, format render.Format) (*plotSession, error) {
	canvas, err := render.New(cfg, format)
	if err != nil {
		return nil, err
	}
	s := &plotSession{canvas: canvas, started: time.Now()}
	hook := func(hpgl.Instruction) { s.sawWork = true }
	s.interp = hpgl.New(canvas, interpOptions(cfg, hpgl.WithOnInstruction(hook))...)
	return s, nil
}

// record appends the instruction to the session's HPGL dump. Labels
// are re-serialized with the default terminator, so DT carries no
// information and is dropped.
func (s *plotSession) record(inst hpgl.Instruction) {
	if inst.Op == hpgl.OpDT {
		return
	}
	s.dump.WriteString(inst.String())
}

// finish saves the plot (and optionally the HPGL dump) under a
// timestamped name, if the session drew anything.
func (s *plotSession) finish(format render.Format) {
	if !s.sawWork {
		return
	}

	stamp := s.started.Format("20060102_150405")
	out := filepath.Join(*outDir, "plot_"+stamp+format.Ext())
	if err := s.canvas.SaveFile(out); err != nil {
		log.Printf("failed to save plot: %v", err)
	} else {
		log.Printf("saved plot to %s", out)
	}

	if *dumpHPGL && s.dump.Len() > 0 {
		dumpPath := filepath.Join(*outDir, "plot_"+stamp+".hpgl")
		if err := os.WriteFile(dumpPath, s.dump.Bytes(), 0644); err != nil {
			log.Printf("failed to save HPGL dump: %v", err)
		}
	}
}

// captureStream interprets one continuous HPGL stream, starting a
// fresh session at each DF the way the hardware signals end-of-plot.
// Sessions rotate synchronously with the instruction stream, so a DF
// arriving mid-chunk still lands every following instruction on the
// next plot. Each finished session goes to save; so does the session
// in progress when the stream ends.
func captureStream(r io.Reader, cfg *config.RenderConfig, format render.Format, save func(*plotSession)) error {
	cur, err := newSession(cfg, format)
	if err != nil {
		return err
	}

	s := hpgl.NewScanner(r)
	for {
		inst, err := s.Next()
		if err == io.EOF {
			save(cur)
			return nil
		}
		if err != nil {
			if hpgl.IsRecoverable(err) && !*strictMode {
				log.Printf("hpgl: %v", err)
				continue
			}
			save(cur)
			return err
		}

		if inst.Op == hpgl.OpDF {
			// DF closes the plot; its defaults-reset is the power-on
			// state of the next session's interpreter.
			cur.record(inst)
			save(cur)
			next, err := newSession(cfg, format)
			if err != nil {
				return err
			}
			cur = next
			continue
		}
		if inst.Op == hpgl.OpIN {
			// A new plot begins; stamp it.
			cur.started = time.Now()
		}
		cur.record(inst)
		if err := cur.interp.Apply(inst); err != nil {
			if hpgl.IsRecoverable(err) && !*strictMode {
				log.Printf("hpgl: %v", err)
				continue
			}
			save(cur)
			return err
		}
	}
}

// chunkReader adapts a mux subscription to io.Reader for the scanner.
// Context cancellation reads as a clean end of stream so shutdown
// flushes the plot in progress.
type chunkReader struct {
	ctx    context.Context
	chunks <-chan []byte
	buf    []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		select {
		case <-r.ctx.Done():
			return 0, io.EOF
		case chunk, ok := <-r.chunks:
			if !ok {
				return 0, io.EOF
			}
			r.buf = chunk
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// runCapture listens on the serial port and renders plots as they
// arrive.
func runCapture(ctx context.Context, cfg *config.RenderConfig, format render.Format) error {
	mux, err := serialmux.NewRealSerialMux(*portName, serialmux.PortOptions{
		BaudRate: *baudRate,
		Parity:   *parity,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	defer mux.Close()

	go func() {
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("serial monitor terminated: %v", err)
		}
	}()

	id, chunks := mux.Subscribe()
	defer mux.Unsubscribe(id)

	log.Printf("listening for HPGL on %s at %d baud", *portName, *baudRate)

	r := &chunkReader{ctx: ctx, chunks: chunks}
	return captureStream(r, cfg, format, func(s *plotSession) { s.finish(format) })
}
