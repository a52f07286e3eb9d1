package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/DDH2004/AIoTHackStorm/internal/config"
	"github.com/DDH2004/AIoTHackStorm/internal/database"
	"github.com/DDH2004/AIoTHackStorm/internal/handlers"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
	"github.com/DDH2004/AIoTHackStorm/internal/services"
	"github.com/DDH2004/AIoTHackStorm/internal/vision/pigo"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
	"github.com/DDH2004/AIoTHackStorm/pkg/pb"
)

var version = "dev"

const (
	broadcastBuffer = 8
	publishQueue    = 64
	maxMsgSize      = 50 * 1024 * 1024
)

func main() {
	httpPort := flag.String("http-port", "", "dashboard HTTP port (overrides HTTP_PORT)")
	devicePort := flag.String("device-port", "", "device HTTP port (overrides DEVICE_HTTP_PORT)")
	grpcPort := flag.String("grpc-port", "", "gRPC port (overrides GRPC_PORT)")
	camera := flag.String("camera", "", "camera index, path or URL (overrides CAMERA_DEVICE)")
	classifier := flag.String("classifier", "", "onnx, grpc, gemini or heuristic (overrides CLASSIFIER_BACKEND)")
	flag.Parse()

	cfg := config.LoadConfig()
	override(&cfg.HTTPPort, trimPort(*httpPort))
	override(&cfg.DeviceHTTPPort, trimPort(*devicePort))
	override(&cfg.GRPCPort, trimPort(*grpcPort))
	override(&cfg.CameraDevice, *camera)
	override(&cfg.ClassifierBackend, strings.ToLower(*classifier))

	log.Setup(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err := cfg.Validate(); err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Configuration rejected")
	}

	log.Info(log.Fields{
		"version":     version,
		"http_port":   cfg.HTTPPort,
		"device_port": cfg.DeviceHTTPPort,
		"grpc_port":   cfg.GRPCPort,
		"camera":      cfg.CameraDevice,
		"detector":    cfg.DetectorBackend,
		"classifier":  cfg.ClassifierBackend,
		"environment": cfg.Environment,
	}, "Starting emotion listener")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn(log.Fields{"error": err.Error()}, "close failed")
			}
		}
	}()

	metrics := services.NewMetrics()
	store := services.NewResultStore()
	broadcaster := services.NewBroadcaster(broadcastBuffer)
	defer broadcaster.Close()

	analyzer := buildAnalyzer(ctx, cfg, metrics, &closers)

	publishers := []pipeline.Publisher{broadcaster}
	var queues []*pipeline.AsyncPublisher

	if cfg.RedisAddress != "" {
		rp, err := services.NewRedisPublisher(services.RedisOptions{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			log.Warn(log.Fields{"error": err.Error(), "addr": cfg.RedisAddress}, "Redis unavailable, continuing without it")
		} else {
			closers = append(closers, rp)
			q := pipeline.NewAsync("redis", rp, publishQueue, metrics.IncrementDropped)
			queues = append(queues, q)
			publishers = append(publishers, q)
		}
	}

	var history handlers.HistoryLister
	if cfg.HistoryEnabled {
		db, err := database.Open(ctx, cfg.DSN())
		if err != nil {
			log.Warn(log.Fields{"error": err.Error(), "dsn": cfg.DSNForLog()}, "History database unavailable, continuing without it")
		} else {
			defer database.Close(db)
			repo := database.NewEventRepository(db)
			history = repo
			q := pipeline.NewAsync("history", pipeline.NewOnEmotionChange(repo), publishQueue, metrics.IncrementDropped)
			queues = append(queues, q)
			publishers = append(publishers, q)
		}
	}

	deps := handlers.Deps{
		Store:     store,
		Metrics:   metrics,
		History:   history,
		Publisher: append(pipeline.Fanout{store}, publishers...),
	}
	if analyzer != nil {
		deps.Analyzer = analyzer
	}
	h := handlers.New(deps, handlers.Options{
		UploadMode:     cfg.UploadMode,
		UploadWidth:    cfg.UploadWidth,
		UploadHeight:   cfg.UploadHeight,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		Version:        version,
	})
	hub := handlers.NewHub(store, broadcaster, metrics)
	mux := handlers.Routes(h, hub, handlers.RouteOptions{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	loopDone := make(chan struct{})
	source, err := openCapture(cfg, analyzer)
	if err != nil {
		log.Error(log.Fields{"error": err.Error(), "camera": cfg.CameraDevice}, "Capture disabled, serving the default record")
		close(loopDone)
	} else {
		metrics.SetWebcamReady(true)
		loop := pipeline.NewLoop(source, analyzer, store, metrics, pipeline.LoopOptions{
			FPS:           cfg.CaptureFPS,
			EmotionEveryN: cfg.EmotionEveryN,
			SourceReady:   metrics.SetWebcamReady,
		}, publishers...)
		go func() {
			defer close(loopDone)
			if err := loop.Run(ctx); err != nil {
				log.Error(log.Fields{"error": err.Error()}, "Capture loop stopped")
			}
			metrics.SetWebcamReady(false)
		}()
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	pb.RegisterListenerServer(grpcServer, handlers.NewGRPCHandler(store, broadcaster, metrics))
	if cfg.GRPCPort != "" {
		go startGRPCServer(grpcServer, cfg.GRPCPort)
	}

	servers := []*http.Server{newHTTPServer(cfg.HTTPPort, mux)}
	if cfg.DeviceHTTPPort != "" && cfg.DeviceHTTPPort != cfg.HTTPPort {
		servers = append(servers, newHTTPServer(cfg.DeviceHTTPPort, mux))
	}
	for _, srv := range servers {
		go startHTTPServer(srv)
	}

	<-ctx.Done()
	log.Info(nil, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		log.Info(nil, "Stopping gRPC server...")
		grpcServer.GracefulStop()
		close(stopped)
	}()
	// Watch streams only end once the broadcaster closes
	broadcaster.Close()

	select {
	case <-stopped:
		log.Info(nil, "gRPC server stopped")
	case <-shutdownCtx.Done():
		log.Warn(nil, "Forced gRPC shutdown")
		grpcServer.Stop()
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(httpShutdownCtx); err != nil {
			log.Error(log.Fields{"error": err.Error(), "addr": srv.Addr}, "Error shutting down HTTP server")
		}
	}

	log.Info(nil, "Closing WebSocket connections...")
	hub.CloseAll()

	<-loopDone
	// flush queued history and redis writes while their backends are still open
	for _, q := range queues {
		q.Close()
	}
	log.Info(nil, "Goodbye!")
}

// openCapture opens the camera, unless there is no detector to feed.
func openCapture(cfg *config.Config, analyzer *pipeline.Analyzer) (pipeline.FrameSource, error) {
	if analyzer == nil {
		return nil, errors.New("no face detector loaded")
	}
	return openCamera(cfg.CameraIndex(), cfg.FrameWidth, cfg.FrameHeight)
}

// buildAnalyzer loads the face detector, the emotion classifier and the
// landmark cascades. Without a detector it returns nil and the service runs
// on the default record; the rest degrade.
func buildAnalyzer(ctx context.Context, cfg *config.Config, metrics *services.Metrics, closers *[]io.Closer) *pipeline.Analyzer {
	detector, err := buildDetector(cfg, closers)
	if err != nil {
		log.Error(log.Fields{
			"error":       err.Error(),
			"backend":     cfg.DetectorBackend,
			"cascade_dir": cfg.PigoCascadeDir,
		}, "Face detector unavailable, capture and upload analysis disabled")
		return nil
	}
	metrics.SetDetectorReady(true)

	classifier, err := buildClassifier(ctx, cfg, closers)
	switch {
	case err == nil:
		metrics.SetClassifierReady(true)
	case cfg.ClassifierFallback:
		log.Warn(log.Fields{"error": err.Error(), "backend": cfg.ClassifierBackend}, "Emotion classifier unavailable, using the position heuristic")
		classifier = pipeline.Heuristic{}
	default:
		log.Warn(log.Fields{"error": err.Error(), "backend": cfg.ClassifierBackend}, "Emotion classifier unavailable, emotion stays neutral")
		classifier = nil
	}
	if classifier != nil && cfg.ClassifierFallback && cfg.ClassifierBackend != config.ClassifierHeuristic {
		if _, isHeuristic := classifier.(pipeline.Heuristic); !isHeuristic {
			classifier = pipeline.Fallback{Primary: classifier, Secondary: pipeline.Recovery{}}
		}
	}

	var landmarks pipeline.LandmarkExtractor
	if cfg.LandmarksEnabled {
		lm, err := pigo.NewLandmarks(cfg.PigoCascadeDir, cfg.MouthUpper, cfg.MouthLower)
		if err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "Landmark cascades unavailable, mouth_open disabled")
		} else {
			landmarks = lm
			metrics.SetLandmarksReady(true)
		}
	}

	position := pipeline.PositionFromBox
	if cfg.PositionSource == config.PositionEyes && landmarks != nil {
		position = pipeline.PositionFromEyes
	}

	return pipeline.NewAnalyzer(detector, classifier, landmarks, pipeline.AnalyzerOptions{
		Mirror:   cfg.Mirror,
		Position: position,
		Mouth: pipeline.MouthOptions{
			Upper:    cfg.MouthUpper,
			Lower:    cfg.MouthLower,
			RatioMin: cfg.MouthRatioMin,
			RatioMax: cfg.MouthRatioMax,
		},
	})
}

func buildDetector(cfg *config.Config, closers *[]io.Closer) (pipeline.FaceDetector, error) {
	if cfg.DetectorBackend == config.DetectorOpenCV {
		d, c, err := newCascadeDetector(cfg.CascadePath)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, c)
		return d, nil
	}

	d, err := pigo.NewDetector(cfg.PigoCascadeDir, pigo.DefaultDetectorOptions())
	if err != nil {
		return nil, err
	}
	return d, nil
}

func buildClassifier(ctx context.Context, cfg *config.Config, closers *[]io.Closer) (pipeline.EmotionClassifier, error) {
	switch cfg.ClassifierBackend {
	case config.ClassifierHeuristic:
		return pipeline.Heuristic{}, nil

	case config.ClassifierGRPC:
		rc, err := services.NewRemoteClassifier(cfg.ClassifierURL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, rc)
		if !rc.HealthCheck(ctx) {
			log.Warn(log.Fields{"url": cfg.ClassifierURL}, "Classifier service not healthy yet")
		}
		return rc, nil

	case config.ClassifierGemini:
		g, err := services.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, g)
		return g, nil

	case config.ClassifierONNX:
		c, closer, err := newFERPlusClassifier(cfg.EmotionModelPath)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, closer)
		return c, nil
	}
	return nil, fmt.Errorf("unknown classifier backend %q", cfg.ClassifierBackend)
}

func newHTTPServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func startGRPCServer(srv *grpc.Server, port string) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error(), "port": port}, "failed to listen on gRPC port")
	}

	log.Info(log.Fields{"port": port}, "gRPC server listening")
	if err := srv.Serve(lis); err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "failed to serve gRPC server")
	}
}

func startHTTPServer(srv *http.Server) {
	log.Info(log.Fields{"addr": srv.Addr}, "HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(log.Fields{"error": err.Error(), "addr": srv.Addr}, "Failed to serve HTTP")
	}
}

func trimPort(port string) string {
	return strings.TrimPrefix(port, ":")
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
