package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

const (
	DetectorPigo   = "pigo"
	DetectorOpenCV = "opencv"

	ClassifierONNX      = "onnx"
	ClassifierGRPC      = "grpc"
	ClassifierGemini    = "gemini"
	ClassifierHeuristic = "heuristic"

	PositionBox  = "box"
	PositionEyes = "eyes"

	UploadFrame  = "frame"
	UploadWebcam = "webcam"
)

type Config struct {
	HTTPPort       string `validate:"required,numeric"`
	DeviceHTTPPort string `validate:"omitempty,numeric"`
	GRPCPort       string `validate:"omitempty,numeric"`
	CORSOrigins    string

	CameraDevice string  `validate:"required"`
	FrameWidth   int     `validate:"gte=0"`
	FrameHeight  int     `validate:"gte=0"`
	CaptureFPS   float64 `validate:"gt=0"`
	Mirror       bool

	DetectorBackend string `validate:"oneof=pigo opencv"`
	CascadePath     string
	PigoCascadeDir  string

	ClassifierBackend  string `validate:"oneof=onnx grpc gemini heuristic"`
	ClassifierFallback bool
	EmotionEveryN      int    `validate:"gte=1"`
	EmotionModelPath   string
	ClassifierURL      string
	GeminiAPIKey       string
	GeminiModel        string

	LandmarksEnabled bool
	PositionSource   string  `validate:"oneof=box eyes"`
	MouthUpper       string
	MouthLower       string
	MouthRatioMin    float64 `validate:"gte=0"`
	MouthRatioMax    float64 `validate:"gtfield=MouthRatioMin"`

	UploadMode   string `validate:"oneof=frame webcam"`
	UploadWidth  int    `validate:"gt=0"`
	UploadHeight int    `validate:"gt=0"`
	MaxUploadMB  int    `validate:"gt=0"`

	RateLimitPerMin int `validate:"gte=0"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	RedisChannel  string

	HistoryEnabled bool
	DBName         string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBSSLMode      string

	LogLevel    string
	LogFile     string
	Environment string
}

func (p *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBPassword, p.DBName, p.DBSSLMode)
}

// DSNForLog is DSN with the password masked.
func (p *Config) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBName, p.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// CameraIndex returns the device as an integer index when it is numeric,
// otherwise the raw path or URL.
func (c *Config) CameraIndex() interface{} {
	if idx, err := strconv.Atoi(c.CameraDevice); err == nil {
		return idx
	}
	return c.CameraDevice
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.PositionSource == PositionEyes && !c.LandmarksEnabled {
		return fmt.Errorf("invalid config: POSITION_SOURCE=eyes needs LANDMARKS_ENABLED")
	}
	if c.ClassifierBackend == ClassifierGemini && c.GeminiAPIKey == "" {
		return fmt.Errorf("invalid config: GEMINI_API_KEY is required for the gemini classifier")
	}
	return nil
}

func LoadConfig() *Config {
	// .env is optional, system environment wins otherwise
	if err := godotenv.Load(); err != nil {
		log.Debug(nil, "No .env file found, using system environment variables")
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "5001"),
		DeviceHTTPPort: getEnv("DEVICE_HTTP_PORT", "5000"),
		GRPCPort:       getEnv("GRPC_PORT", "50051"),
		CORSOrigins:    getEnv("CORS_ORIGINS", "*"),

		CameraDevice: getEnv("CAMERA_DEVICE", "0"),
		FrameWidth:   getEnvInt("FRAME_WIDTH", 320),
		FrameHeight:  getEnvInt("FRAME_HEIGHT", 240),
		CaptureFPS:   getEnvFloat("CAPTURE_FPS", 10),
		Mirror:       getEnvBool("MIRROR", true),

		DetectorBackend: strings.ToLower(getEnv("DETECTOR_BACKEND", DetectorPigo)),
		CascadePath:     getEnv("CASCADE_PATH", "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml"),
		PigoCascadeDir:  getEnv("PIGO_CASCADE_DIR", "./cascade"),

		ClassifierBackend:  strings.ToLower(getEnv("CLASSIFIER_BACKEND", ClassifierONNX)),
		ClassifierFallback: getEnvBool("CLASSIFIER_FALLBACK", true),
		EmotionEveryN:      getEnvInt("EMOTION_EVERY_N", 5),
		EmotionModelPath:   getEnv("EMOTION_MODEL_PATH", "./models/emotion-ferplus-8.onnx"),
		ClassifierURL:      getEnv("CLASSIFIER_URL", "localhost:50052"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL_NAME", "gemini-1.5-flash"),

		LandmarksEnabled: getEnvBool("LANDMARKS_ENABLED", true),
		PositionSource:   strings.ToLower(getEnv("POSITION_SOURCE", PositionBox)),
		MouthUpper:       getEnv("MOUTH_UPPER_LANDMARK", "lp82"),
		MouthLower:       getEnv("MOUTH_LOWER_LANDMARK", "lp81"),
		MouthRatioMin:    getEnvFloat("MOUTH_RATIO_MIN", 0.15),
		MouthRatioMax:    getEnvFloat("MOUTH_RATIO_MAX", 0.55),

		UploadMode:   strings.ToLower(getEnv("UPLOAD_MODE", UploadFrame)),
		UploadWidth:  getEnvInt("UPLOAD_WIDTH", 160),
		UploadHeight: getEnvInt("UPLOAD_HEIGHT", 120),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 5),

		RateLimitPerMin: getEnvInt("RATE_PER_MIN", 0),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisKey:      getEnv("REDIS_KEY", "emotion:latest"),
		RedisChannel:  getEnv("REDIS_CHANNEL", "emotion:updates"),

		HistoryEnabled: getEnvBool("HISTORY_ENABLED", false),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "emotion_listener"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),

		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogFile:     getEnv("LOG_FILE", ""),
		Environment: getEnv("ENVIRONMENT", "production"),
	}

	if cfg.HistoryEnabled && cfg.DBPassword == "" {
		log.Warn(nil, "DB_PASSWORD is not set")
	}

	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
