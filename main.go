package main

import (
	"log"
	"log/slog"

	"github.com/chaos-io/img2reveal/rembg"
	"github.com/chaos-io/img2reveal/server"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	var remover rembg.Remover = rembg.NewDefaultRemBG()
	if cfg.RembgURL != "" {
		remover = rembg.NewBiRefNetRemBG(cfg.RembgURL)
		slog.Info("using BiRefNet rembg", "url", cfg.RembgURL)
	} else {
		slog.Warn("REMBG_URL not set, background removal is a passthrough")
	}

	if err := server.New(cfg, remover).Run(); err != nil {
		log.Fatal("Server exited:", err)
	}
}
