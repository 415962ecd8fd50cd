// Command gbacore is a headless runner for the GBA core: it loads a ROM and
// BIOS image, runs a fixed number of frames, and optionally traces CPU
// state or dumps the last rendered frame as a PPM image.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/FabianRolfMatthiasNoll/gbacore/internal/apu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/ppu"
)

// frameBuffer accumulates scanlines drawn by the PPU into a packed BGR555 grid;
// audio goes to discardSink, which satisfies apu.Sink by dropping every
// sample, keeping this runner dependency-free for headless test environments.
type frameBuffer struct {
	rows [ppu.ScreenHeight][ppu.ScreenWidth]uint16
}

func (f *frameBuffer) DrawScanline(y int, pixels [ppu.ScreenWidth]uint16) {
	if y >= 0 && y < ppu.ScreenHeight {
		f.rows[y] = pixels
	}
}

type discardSink struct{}

func (discardSink) PushSample(int16, int16) {}

func main() {
	romPath := flag.String("rom", "", "path to a GBA ROM image")
	biosPath := flag.String("bios", "", "path to a 16KiB GBA BIOS image")
	frames := flag.Int("frames", 60, "number of frames to run")
	trace := flag.Bool("trace", false, "print the frame number, PC and VCOUNT at each frame boundary")
	skipBIOS := flag.Bool("skip-bios", true, "start execution at the cartridge entry point instead of running the BIOS")
	dumpFrame := flag.String("dumpframe", "", "optional path to write the final frame as a binary PPM")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}
	var biosImage []byte
	if *biosPath != "" {
		biosImage, err = os.ReadFile(*biosPath)
		if err != nil {
			log.Fatalf("read bios: %v", err)
		}
	} else {
		biosImage = make([]byte, 16*1024)
	}

	fb := &frameBuffer{}
	cfg := emu.Defaults()
	cfg.SkipBIOS = *skipBIOS
	m, err := emu.New(cfg, biosImage, rom, fb, discardSink{})
	if err != nil {
		log.Fatalf("init machine: %v", err)
	}

	for i := 0; i < *frames; i++ {
		if err := m.RunFrame(); err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		if *trace {
			fmt.Printf("frame=%d pc=%08X vcount=%d\n", i, m.CPU.Regs().PC(), m.PPU.VCount())
		}
	}

	if *dumpFrame != "" {
		if err := writePPM(*dumpFrame, fb); err != nil {
			log.Fatalf("dump frame: %v", err)
		}
	}
}

// writePPM writes the framebuffer as a binary (P6) PPM, expanding each
// packed BGR555 pixel to 8-bit-per-channel RGB.
func writePPM(path string, fb *frameBuffer) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "P6\n%d %d\n255\n", ppu.ScreenWidth, ppu.ScreenHeight)
	for y := 0; y < ppu.ScreenHeight; y++ {
		for x := 0; x < ppu.ScreenWidth; x++ {
			c := fb.rows[y][x]
			r := byte(c&0x1F) << 3
			g := byte((c>>5)&0x1F) << 3
			b := byte((c>>10)&0x1F) << 3
			w.Write([]byte{r, g, b})
		}
	}
	return w.Flush()
}

var _ apu.Sink = discardSink{}
