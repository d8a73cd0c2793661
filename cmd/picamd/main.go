// picamd captures camera frames through the media pipeline and publishes
// raw and JPEG-compressed frames, plus camera calibration, to WebSocket
// subscribers. Capture is controlled over HTTP with idempotent
// start_capture / stop_capture commands.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kaimana/picamd/internal/calib"
	"github.com/kaimana/picamd/internal/camctl"
	"github.com/kaimana/picamd/internal/config"
	"github.com/kaimana/picamd/internal/logging"
	"github.com/kaimana/picamd/internal/pipeline"
	"github.com/kaimana/picamd/internal/pub"

	// Register the software driver components.
	_ "github.com/kaimana/picamd/internal/mmal/soft"
)

var log = logging.DefaultLogger.WithTag("picamd")

// Populated via -ldflags="-X main.Version=...".
var Version = "dev"

var (
	configFlag     = flag.StringP("config", "c", "", "Path to YAML configuration file")
	listenFlag     = flag.StringP("listen", "l", ":8764", "HTTP listen address for control and streaming")
	widthFlag      = flag.Int("width", config.DefaultWidth, "Frame width in pixels (1-1920)")
	heightFlag     = flag.Int("height", config.DefaultHeight, "Frame height in pixels (1-1080)")
	qualityFlag    = flag.Int("quality", config.DefaultQuality, "JPEG quality (1-100)")
	framerateFlag  = flag.Int("framerate", config.DefaultFramerate, "Capture framerate (1-90)")
	bitrateFlag    = flag.Int("bitrate", config.DefaultBitrate, "Encoder bitrate cap in bits per second")
	monochromeFlag = flag.Bool("monochrome", false, "Capture single-plane mono8 frames")
	hflipFlag      = flag.Bool("hflip", false, "Flip frames horizontally")
	vflipFlag      = flag.Bool("vflip", false, "Flip frames vertically")
	prefixFlag     = flag.String("frame-id-prefix", "", "Prefix for the frame identifier on published records")
	calibFlag      = flag.String("calibration", "", "Path to camera calibration YAML file")
	noStartFlag    = flag.Bool("no-autostart", false, "Do not start capture at launch")
	versionFlag    = flag.BoolP("version", "v", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println("picamd", Version)
		os.Exit(0)
	}

	cfg := loadConfig()

	info, err := calib.Load(cfg.Calibration)
	if err != nil {
		log.Fatal("calibration: %v", err)
	}

	publisher := pub.NewWSPublisher()
	controller := pipeline.New(cfg, camctl.Defaults(), info, publisher)

	mux := http.NewServeMux()
	mux.Handle("/stream", publisher)
	mux.HandleFunc("/start_capture", func(w http.ResponseWriter, r *http.Request) {
		if err := controller.StartCapture(); err != nil {
			log.Error("start_capture: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/stop_capture", func(w http.ResponseWriter, r *http.Request) {
		if err := controller.StopCapture(); err != nil {
			log.Error("stop_capture: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{Addr: *listenFlag, Handler: mux}
	go func() {
		log.Info("listening on %s", *listenFlag)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server: %v", err)
		}
	}()

	if !*noStartFlag {
		if err := controller.StartCapture(); err != nil {
			log.Error("initial start failed: %v", err)
		}
	}

	// Run until asked to shut down, then tear the pipeline down in order.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Info("received %s, shutting down", s)

	controller.StopCapture()
	publisher.Close()
	server.Close()
}

// loadConfig reads the config file if given, then applies any flags set
// explicitly on the command line over it.
func loadConfig() config.Config {
	cfg := config.Default()
	if *configFlag != "" {
		var err error
		if cfg, err = config.Load(*configFlag); err != nil {
			log.Fatal("config: %v", err)
		}
	}

	set := map[string]func(*config.Config){
		"width":           func(c *config.Config) { c.Width = *widthFlag },
		"height":          func(c *config.Config) { c.Height = *heightFlag },
		"quality":         func(c *config.Config) { c.Quality = *qualityFlag },
		"framerate":       func(c *config.Config) { c.Framerate = *framerateFlag },
		"bitrate":         func(c *config.Config) { c.Bitrate = *bitrateFlag },
		"monochrome":      func(c *config.Config) { c.Monochrome = *monochromeFlag },
		"hflip":           func(c *config.Config) { c.HFlip = *hflipFlag },
		"vflip":           func(c *config.Config) { c.VFlip = *vflipFlag },
		"frame-id-prefix": func(c *config.Config) { c.FrameIDPrefix = *prefixFlag },
		"calibration":     func(c *config.Config) { c.Calibration = *calibFlag },
	}
	for name, apply := range set {
		if flag.CommandLine.Changed(name) {
			apply(&cfg)
		}
	}

	cfg.Normalize()
	return cfg
}
