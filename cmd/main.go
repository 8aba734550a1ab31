package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/sjon/camera"
	"github.com/aukilabs/sjon/engine"
	"github.com/aukilabs/sjon/featureflag"
	"github.com/aukilabs/sjon/geometry"
	sjonhttp "github.com/aukilabs/sjon/http"
	"github.com/aukilabs/sjon/navindex"
	"github.com/aukilabs/sjon/render"
	"github.com/aukilabs/sjon/smoketest"
	"github.com/aukilabs/sjon/streaming"
	"github.com/aukilabs/sjon/visibility"
	sjonws "github.com/aukilabs/sjon/websocket"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The sjon version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "sjon_info",
		Help:        "Sjon information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// Keeps the config field names when the binary is obfuscated, the cli
// package derives option names from them.
var _ = reflect.TypeOf(config{})

type config struct {
	Addr                string        `cli:""        env:"SJON_ADDR"                  help:"Listening address for visibility stream connections."`
	AdminAddr           string        `cli:""        env:"SJON_ADMIN_ADDR"            help:"Admin listening address."`
	PublicEndpoint      string        `cli:""        env:"SJON_PUBLIC_ENDPOINT"       help:"The public endpoint where the visibility stream is reachable."`
	AuthToken           string        `cli:""        env:"SJON_AUTH_TOKEN"            help:"Bearer token required to connect to the visibility stream. Empty accepts every client."`
	LogLevel            string        `cli:""        env:"SJON_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent           bool          `cli:""        env:"SJON_LOG_INDENT"            help:"Indent logs."`
	DataDir             string        `cli:""        env:"SJON_DATA_DIR"              help:"Directory of the geometry and texture files."`
	IndexFile           string        `cli:""        env:"SJON_INDEX_FILE"            help:"Spatial index file."`
	OcclusionFile       string        `cli:""        env:"SJON_OCCLUSION_FILE"        help:"Occlusion index file. Required in occlusion mode."`
	TrackFile           string        `cli:""        env:"SJON_TRACK_FILE"            help:"JSON camera track. Defaults to a circle over the scene."`
	Textures            []string      `cli:""        env:"SJON_TEXTURES"              help:"Comma separated texture names to load before geometry."`
	TextureExt          string        `cli:",hidden" env:"SJON_TEXTURE_EXT"           help:"Extension appended to texture names."`
	Mode                string        `cli:""        env:"SJON_MODE"                  help:"Visibility mode (dynamic|occlusion)."`
	FrameDuration       time.Duration `cli:",hidden" env:"SJON_FRAME_DURATION"        help:"The duration of a frame."`
	VisibilityInterval  time.Duration `cli:",hidden" env:"SJON_VISIBILITY_INTERVAL"   help:"The minimum time between two dynamic visibility passes."`
	TexturesPerStep     int           `cli:",hidden" env:"SJON_TEXTURES_PER_STEP"     help:"The number of textures loaded per frame."`
	MaxVertices         int           `cli:",hidden" env:"SJON_MAX_VERTICES"          help:"The maximum number of vertices of a LOD."`
	ClientFrameInterval time.Duration `cli:",hidden" env:"SJON_CLIENT_FRAME_INTERVAL" help:"The minimum time between two frames sent to a client."`
	ClientWriteTimeout  time.Duration `cli:",hidden" env:"SJON_CLIENT_WRITE_TIMEOUT"  help:"Time until a client that does not read is disconnected."`
	LogSummaryInterval  time.Duration `cli:",hidden" env:"SJON_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	Camera              cameraConfig  `cli:""        env:"-"                          help:"Camera configuration."`
	Events              eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags        []string      `cli:",hidden" env:"SJON_FEATURE_FLAGS"         help:"Comma separated feature flags."`
	Version             bool          `cli:""        env:"-"                          help:"Show version."`
	Help                bool          `cli:""        env:"-"                          help:"Show help."`
}

type cameraConfig struct {
	FOV    float64 `cli:"" env:"SJON_CAMERA_FOV"    help:"Vertical field of view in degrees."`
	Aspect float64 `cli:"" env:"SJON_CAMERA_ASPECT" help:"Display width divided by height."`
	Near   float64 `cli:"" env:"SJON_CAMERA_NEAR"   help:"Near clip distance."`
	Far    float64 `cli:"" env:"SJON_CAMERA_FAR"    help:"Far clip distance. Also sets the LOD distances."`
	Rotate bool    `cli:"" env:"SJON_CAMERA_ROTATE" help:"Render to a display rotated by 90 degrees."`
	Speed  float64 `cli:"" env:"SJON_CAMERA_SPEED"  help:"Camera speed along the track in units per second."`
	Height float64 `cli:"" env:"SJON_CAMERA_HEIGHT" help:"Camera height of the default track."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"SJON_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables events."`
	FlushInterval time.Duration `cli:",hidden" env:"SJON_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"SJON_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"SJON_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18290",
		PublicEndpoint:     "ws://localhost:4100",
		LogLevel:           logs.InfoLevel.String(),
		DataDir:            "data",
		IndexFile:          "data/index.sjni",
		TextureExt:         ".pvr",
		Mode:               engine.Dynamic.String(),
		FrameDuration:      time.Millisecond * 16,
		VisibilityInterval: engine.DefaultVisibilityInterval,
		TexturesPerStep:    5,
		MaxVertices:        streaming.MaxIndexableVertices,
		ClientWriteTimeout: time.Second * 10,
		LogSummaryInterval: time.Minute,
		Camera: cameraConfig{
			FOV:    60,
			Aspect: 16.0 / 9.0,
			Near:   1,
			Far:    1000,
			Speed:  10,
			Height: 2,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the sjon visibility server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	mode, err := validateConfig(conf)
	if err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "sjon",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	idx, err := navindex.LoadIndex(conf.IndexFile)
	if err != nil {
		logs.Fatal(err)
	}
	if err := idx.Validate(); err != nil {
		logs.Fatal(err)
	}

	var occ *navindex.Occlusion
	if conf.OcclusionFile != "" {
		if occ, err = navindex.LoadOcclusion(conf.OcclusionFile); err != nil {
			logs.Fatal(err)
		}
		if err := occ.Validate(idx); err != nil {
			logs.Fatal(err)
		}
	}

	track, err := loadTrack(conf, idx)
	if err != nil {
		logs.Fatal(err)
	}

	flags := featureflag.New(conf.FeatureFlags)

	thresholds := visibility.DefaultThresholds(float32(conf.Camera.Near), float32(conf.Camera.Far))
	selector := visibility.NewSelector(thresholds)
	resolver := visibility.NewResolver(thresholds)

	flags.IfSet(featureflag.FlagDisableEntityCulling, func() {
		selector.EntityCulling = false
		resolver.EntityCulling = false
	})
	flags.IfSet(featureflag.FlagDisableTileCulling, func() {
		resolver.TileCulling = false
	})

	backend := render.NewBackend(conf.DataDir)
	loader := &streaming.Loader{
		Index:           idx,
		Textures:        conf.Textures,
		TextureExt:      conf.TextureExt,
		TexturesPerStep: conf.TexturesPerStep,
		MaxVertices:     conf.MaxVertices,
		Source:          geometry.DirSource{Dir: conf.DataDir},
		TextureLoader:   backend,
		Uploader:        backend,
		OnComplete: func() {
			logs.WithTag("buffers", backend.BufferCount()).
				WithTag("buffer_bytes", backend.BufferBytes()).
				WithTag("textures", backend.TextureCount()).
				Info("scene uploaded")
		},
	}

	e := engine.New(engine.Options{
		Index:     idx,
		Occlusion: occ,
		Loader:    loader,
		Selector:  selector,
		Resolver:  resolver,
		Camera: &camera.Follower{
			Track: track,
			Lens: camera.Lens{
				FOV:    mgl32.DegToRad(float32(conf.Camera.FOV)),
				Aspect: float32(conf.Camera.Aspect),
				Near:   float32(conf.Camera.Near),
				Far:    float32(conf.Camera.Far),
				Rotate: conf.Camera.Rotate,
			},
		},
		Mode:               mode,
		VisibilityInterval: conf.VisibilityInterval,
		Throttle:           !flags.IsSet(featureflag.FlagDisableVisibilityThrottle),
	})

	var service http.ServeMux
	service.Handle("/health", sjonhttp.HandleWithCORS(http.HandlerFunc(sjonhttp.HandleHealthCheck)))
	service.Handle("/version", sjonhttp.HandleWithCORS(sjonhttp.HandleVersion(version)))
	service.Handle("/ready", sjonhttp.HandleWithCORS(sjonhttp.HandleReadyCheck(e.Ready)))
	service.Handle("/", websocket.Server{
		Handshake: sjonhttp.VerifyAuthToken(conf.AuthToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h sjonws.Handler = &sjonws.RealtimeHandler{
				Engine:        e,
				FrameInterval: conf.ClientFrameInterval,
				WriteTimeout:  conf.ClientWriteTimeout,
			}
			h = sjonws.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = sjonws.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			sjonws.Handle(ctx, conn, h)
		},
	})

	snapshot := func() any {
		return e.Snapshot()
	}

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", sjonhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", sjonhttp.HandleReadyCheck(e.Ready))
	admin.HandleFunc("/version", sjonhttp.HandleVersion(version))
	admin.Handle("/visibility", sjonhttp.HandleWithCORS(sjonhttp.HandleJSON(snapshot)))
	admin.HandleFunc("/smoke-test", sjonhttp.VerifyAuthTokenHandler(conf.AuthToken, smoketest.HandleSmokeTest(smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		Token:     conf.AuthToken,
		UserAgent: fmt.Sprintf("sjon %s", version),
	})))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	stats := idx.Stats()
	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("mode", mode.String()).
		WithTag("tiles", stats.Tiles).
		WithTag("lods", stats.Lods).
		WithTag("entities", stats.Entities).
		WithTag("feature_flags", flags.Strings()).
		Info("starting sjon server")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := e.Run(ctx, conf.FrameDuration); err != nil && err != context.Canceled {
			logs.Warn(errors.New("frame loop stopped").Wrap(err))
		}
	}()

	sjonhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			sjonhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	wg.Wait()
}

func loadTrack(conf config, idx *navindex.Index) (*camera.Track, error) {
	if conf.TrackFile != "" {
		track, err := camera.LoadTrack(conf.TrackFile)
		if err != nil {
			return nil, err
		}
		if conf.Camera.Speed > 0 && track.Speed == 0 {
			track.Speed = float32(conf.Camera.Speed)
		}
		return track, nil
	}

	bounds := idx.Bounds()
	size := bounds.Max.Sub(bounds.Min)
	center := bounds.Center()

	radius := max(min(size.X(), size.Y())/3, 1)
	return camera.CircleTrack(
		mgl32.Vec3{center.X(), center.Y(), float32(conf.Camera.Height)},
		radius,
		float32(conf.Camera.Speed),
		32,
	), nil
}

func validateConfig(conf config) (engine.Mode, error) {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return 0, errors.New("invalid public endpoint").Wrap(err)
	}

	mode, err := engine.ParseMode(conf.Mode)
	if err != nil {
		return 0, err
	}

	if conf.IndexFile == "" {
		return 0, errors.New("index file is required")
	}

	if mode == engine.Occlusion && conf.OcclusionFile == "" {
		return 0, errors.New("occlusion mode requires an occlusion file")
	}

	if conf.Camera.Near <= 0 || conf.Camera.Far <= conf.Camera.Near {
		return 0, errors.New("camera clip distances must satisfy 0 < near < far").
			WithTag("near", conf.Camera.Near).
			WithTag("far", conf.Camera.Far)
	}

	if conf.Camera.FOV <= 0 || conf.Camera.FOV >= 180 || conf.Camera.Aspect <= 0 {
		return 0, errors.New("invalid camera lens").
			WithTag("fov", conf.Camera.FOV).
			WithTag("aspect", conf.Camera.Aspect)
	}

	if conf.FrameDuration <= 0 {
		return 0, errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration.String())
	}

	return mode, nil
}
