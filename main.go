package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"picam/config"
	"picam/notify"
	"picam/serve"
	"picam/video"
	"picam/video/sink"
	"picam/video/source"
)

var (
	configPath = flag.String("config", "picam.yaml", "Path to the configuration file.")
	port       = flag.Int("port", 8080, "Port to host the control API.")
	input      = flag.String("input", "-", "Encoder stream to read (\"-\" for stdin).")
)

// newPrimarySink builds the primary destination for the configured output:
// udp/tcp URIs get a network sink, circular_mb selects the in-memory ring,
// any other non-empty value a file sink. Empty means no primary output.
func newPrimarySink(cfg *config.Config) (sink.Sink, error) {
	switch {
	case strings.HasPrefix(cfg.Output, "udp://"), strings.HasPrefix(cfg.Output, "tcp://"):
		return sink.NewNetSink(cfg.Output)
	case cfg.CircularMB > 0:
		return sink.NewCircularSink(cfg.CircularMB<<20, cfg.Output), nil
	case cfg.Output != "":
		return sink.NewFileSink(cfg.Output, sink.FileOptions{
			SegmentMS: cfg.SegmentMS,
			Split:     cfg.Split,
			Wrap:      cfg.Wrap,
			Flush:     cfg.Flush,
		}), nil
	}
	return nil, nil
}

func openInput(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ctrl *video.Controller
	if err := config.Load(ctx, *configPath, func(cfg *config.Config) {
		// Only the pause flag is applied live; everything else takes
		// effect on restart.
		if ctrl != nil {
			ctrl.SetEnabled(!cfg.Pause)
		}
	}); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.Get()

	fs, err := video.NewFilesystem(cfg.EventPath)
	if err != nil {
		log.Fatalf("Failed to prepare recording filesystem: %v", err)
	}
	fs.FlushWrites = cfg.Flush

	transcoder := video.NewFFmpegTranscoder()
	defer transcoder.Close()

	primary, err := newPrimarySink(cfg)
	if err != nil {
		log.Fatalf("Failed to open primary output: %v", err)
	}

	var notifier video.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL)
	}

	ctrl, err = video.NewController(video.ControllerOptions{
		PreEventSeconds:    cfg.PreEventSecs,
		Framerate:          cfg.Framerate,
		EventWindowSeconds: cfg.EventWindowSecs,
		Pause:              cfg.Pause,
		SavePTSPath:        cfg.SavePTS,
		MetadataPath:       cfg.Metadata,
		MetadataFormat:     cfg.MetadataFormat,
	}, primary, fs, notifier, transcoder)
	if err != nil {
		log.Fatalf("Failed to create output controller: %v", err)
	}

	fanout := &notify.Notifier{
		NotificationHoursStart: cfg.NotificationHoursStart,
		NotificationHoursEnd:   cfg.NotificationHoursEnd,
	}
	ctrl.Listeners = append(ctrl.Listeners, fanout)

	metaws := serve.NewMetaUpdater()
	fs.Listeners = append(fs.Listeners, metaws)
	fanout.Listeners = append(fanout.Listeners, metaws)

	trigger := make(chan int, 4)

	mux := http.NewServeMux()
	mux.Handle("/events", &serve.MetaServer{FS: fs})
	mux.Handle("/eventsws", metaws)
	mux.Handle("/raw", serve.NewRawServer(fs))
	mux.Handle("/video", serve.NewVideoServer(fs))
	mux.Handle("/thumb", serve.NewThumbServer(fs))
	mux.Handle("/delete", &serve.DeleteServer{FS: fs})
	mux.Handle("/trigger", &serve.TriggerServer{C: trigger})
	mux.Handle("/metrics", promhttp.Handler())

	if cfg.PushDSN != "" {
		db, err := gorm.Open(mysql.Open(cfg.PushDSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to open push database: %v", err)
		}
		wp, err := notify.NewWebPush(db)
		if err != nil {
			log.Fatalf("Failed to initialize web push: %v", err)
		}
		wp.RegisterHandlers(mux)
		fanout.Listeners = append(fanout.Listeners, wp)
	}

	go func() {
		log.Infof("Hosting control API on port %d", *port)
		log.Errorf("%v", http.ListenAndServe(fmt.Sprintf(":%d", *port),
			handlers.CombinedLoggingHandler(os.Stderr, mux)))
	}()

	in, err := openInput(*input)
	if err != nil {
		log.Fatalf("Failed to open input %v: %v", *input, err)
	}
	src := source.NewFramedReader(in)
	defer src.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	frames := src.Frames()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				log.Infof("Encoder stream ended")
				ctrl.Close()
				return
			}
			if cfg.Metadata != "" {
				ctrl.AttachMetadata(video.Metadata{
					"SensorTimestamp": strconv.FormatInt(f.Timestamp, 10),
					"FrameSize":       strconv.Itoa(len(f.Data)),
					"Keyframe":        strconv.FormatBool(f.Keyframe),
				})
			}
			if err := ctrl.Deliver(f); err != nil {
				log.Errorf("Frame delivery failed: %v", err)
			}
		case seq := <-trigger:
			ctrl.NotifyEvent(seq)
		case sig := <-sigs:
			log.Infof("Caught signal %v", sig)
			ctrl.Close()
			return
		}
	}
}
