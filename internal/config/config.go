package config

import (
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/ngoclaithe/mncr-live/pkg/config"
)

type Config struct {
	Server     ServerConfig
	WebSocket  WebSocketConfig
	Auth       AuthConfig
	Ingest     IngestConfig
	Transcoder TranscoderConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	ICE        ICEConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	Secret string
	Issuer string
}

// IngestConfig bounds the per-room fragment buffer and the restart policy
// for a failed transcoder process.
type IngestConfig struct {
	BufferCapacity int           `mapstructure:"buffer_capacity"`
	BufferLowWater int           `mapstructure:"buffer_low_water"`
	RestartDelay   time.Duration `mapstructure:"restart_delay"`
}

// TranscoderConfig carries the fixed encode and packaging parameters passed
// to the external transcoder binary.
type TranscoderConfig struct {
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	OutputDir       string `mapstructure:"output_dir"`
	PublicBasePath  string `mapstructure:"public_base_path"`
	Framerate       int
	GOPSize         int    `mapstructure:"gop_size"`
	VideoBitrate    string `mapstructure:"video_bitrate"`
	AudioBitrate    string `mapstructure:"audio_bitrate"`
	Preset          string
	SegmentDuration int `mapstructure:"segment_duration"`
	PlaylistSize    int `mapstructure:"playlist_size"`
	DeleteSegments  bool `mapstructure:"delete_segments"`
	WriteQueueSize  int  `mapstructure:"write_queue_size"`
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type ICEConfig struct {
	STUNServers []string `mapstructure:"stun_servers"`
	TURNServers []string `mapstructure:"turn_servers"`
	TURNUser    string   `mapstructure:"turn_user"`
	TURNSecret  string   `mapstructure:"turn_secret"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 1048576)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "mncr")
	v.SetDefault("ingest.buffer_capacity", 8)
	v.SetDefault("ingest.buffer_low_water", 2)
	v.SetDefault("ingest.restart_delay", "2s")
	v.SetDefault("transcoder.ffmpeg_path", "ffmpeg")
	v.SetDefault("transcoder.output_dir", "./hls")
	v.SetDefault("transcoder.public_base_path", "/live")
	v.SetDefault("transcoder.framerate", 30)
	v.SetDefault("transcoder.gop_size", 60)
	v.SetDefault("transcoder.video_bitrate", "2500k")
	v.SetDefault("transcoder.audio_bitrate", "128k")
	v.SetDefault("transcoder.preset", "veryfast")
	v.SetDefault("transcoder.segment_duration", 2)
	v.SetDefault("transcoder.playlist_size", 6)
	v.SetDefault("transcoder.delete_segments", true)
	v.SetDefault("transcoder.write_queue_size", 16)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "broadcast-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("ice.stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.secret", "AUTH_SECRET")
	v.BindEnv("transcoder.ffmpeg_path", "FFMPEG_PATH")
	v.BindEnv("transcoder.output_dir", "HLS_OUTPUT_DIR")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_BROADCAST_TOPIC")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Ingest.RestartDelay = parseDuration(v, "ingest.restart_delay", 2*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
