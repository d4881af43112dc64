package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/technosupport/ts-drm/internal/config"
	"github.com/technosupport/ts-drm/internal/logger"
	"github.com/technosupport/ts-drm/internal/playback"
)

// token_gen prints a playback URL for one user agent and HDCP level, using
// the same configuration as drmtokend.
func main() {
	ua := flag.String("ua", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", "client user agent")
	level := flag.Int("level", 0, "HDCP level (0, 1 or 2)")
	cuid := flag.String("cuid", "", "client user id (default from config)")
	cid := flag.String("cid", "", "content id (default from config)")
	mckey := flag.String("mckey", "", "media content key (default from config)")
	report := flag.Bool("report", false, "print the full diagnostic report as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	svc, _, _, err := playback.FromConfig(cfg, nil, log)
	if err != nil {
		log.Fatal("failed to build playback service", zap.Error(err))
	}

	identity := playback.Identity{ClientUserID: *cuid, ContentID: *cid, MediaContentKey: *mckey}.Fill(playback.DefaultIdentity(cfg))
	res, err := svc.Issue(playback.Request{UserAgent: *ua, HDCPLevel: *level, Identity: identity})
	if err != nil {
		log.Fatal("failed to issue token", zap.Error(err))
	}

	if !*report {
		fmt.Println(res.URL)
		return
	}

	rep, err := playback.NewReport(res)
	if err != nil {
		log.Fatal("failed to build report", zap.Error(err))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		log.Fatal("failed to write report", zap.Error(err))
	}
}
