// Package main provides a viewer for particle effect files.
//
// Usage:
//
//	go run ./cmd/particles [flags]
//
// Flags:
//
//	--in <path>          Effect file, or directory scanned for *.alo files (default: Data/Art/Models)
//	--config <file>      YAML configuration overriding the embedded defaults
//	--filter <keyword>   Initial filter by name
//	--effect <name>      Start with a specific effect
//	--auto-play          Spawn the next effect every 3 seconds
//	--no-settings        Do not load or save viewer settings
//	--verbose            Enable verbose logging
//
// Controls:
//
//	Mouse Click       - Spawn the effect where the cursor meets the ground
//	Left/Right Arrow  - Previous/next effect
//	Home/End          - First/last effect
//	Space             - Spawn the effect at the origin
//	K                 - Kill the most recent instance (honours leave-particles)
//	R                 - Clear all instances
//	P                 - Pause
//	F or /            - Search mode
//	A/D               - Orbit the camera, mouse wheel zooms
//	W                 - Toggle wind
//	G                 - Toggle ground
//	H                 - Toggle heat debug
//	S                 - Save settings
//	Q/Escape          - Quit
package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/quasilyte/gdata/v2"

	"github.com/decker502/aloparticles/pkg/config"
)

var (
	inFlag         = flag.String("in", "Data/Art/Models", "Effect file or directory of effects")
	configFlag     = flag.String("config", "", "YAML configuration file")
	filterFlag     = flag.String("filter", "", "Initial filter by name keyword")
	effectFlag     = flag.String("effect", "", "Start with specific effect name")
	autoPlayFlag   = flag.Bool("auto-play", false, "Auto cycle through effects every 3 seconds")
	noSettingsFlag = flag.Bool("no-settings", false, "Do not persist viewer settings")
	verboseFlag    = flag.Bool("verbose", false, "Enable verbose logging (default off)")
)

var errQuit = errors.New("quit requested")

func main() {
	flag.Parse()

	log.Println("=== Particle Effect Viewer ===")
	log.Printf("Effects: %q", *inFlag)
	log.Printf("Initial filter: %q", *filterFlag)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store *gdata.Manager
	if !*noSettingsFlag {
		store, err = gdata.Open(gdata.Config{AppName: "aloparticles"})
		if err != nil {
			log.Printf("Warning: settings storage unavailable: %v", err)
			store = nil
		}
	}

	viewer, err := NewViewer(cfg, config.NewSettingsManager(store, cfg))
	if err != nil {
		log.Fatal("Failed to initialize viewer:", err)
	}

	if !*verboseFlag {
		log.SetOutput(io.Discard)
	}

	ebiten.SetWindowSize(cfg.Viewer.Width, cfg.Viewer.Height)
	ebiten.SetWindowTitle("Particle Effect Viewer")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.Viewer.TPS)

	if err := ebiten.RunGame(viewer); err != nil && !errors.Is(err, errQuit) {
		log.Fatal(err)
	}

	viewer.saveSettings()
	viewer.Close()
	log.Println("Particle viewer closed")
	os.Exit(0)
}
