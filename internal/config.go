package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080" validate:"gt=0,lte=65535"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	// Empty means the store only lives in memory.
	BadgerFilepath string `env:"BADGER_FILEPATH"`

	JWTSecret         string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h" validate:"gt=0"`

	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s" validate:"gt=0"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"gt=0"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=1048576" validate:"gt=0"`
	MaxBodySize          int64         `env:"MAX_BODY_SIZE,default=1048576" validate:"gt=0"`
	// Zero disables the per request timeout.
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=15s" validate:"gte=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=*"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=15s" validate:"gt=0"`
	InviteQueueSize int           `env:"INVITE_QUEUE_SIZE,default=256" validate:"gt=0"`
	NotifyTimeout   time.Duration `env:"NOTIFY_TIMEOUT,default=10s" validate:"gt=0"`
	PublicURL       string        `env:"PUBLIC_URL,default=http://localhost:8080" validate:"url"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587" validate:"gt=0,lte=65535"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM,default=no-reply@chat-relay.local" validate:"required_with=SMTPHost,omitempty,email"`
}

// Address is the listen address of the HTTP server.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	origins := lo.Map(strings.Split(c.AllowedOrigins, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(origins)
}

// SMTPEnabled reports whether invite emails go through a real SMTP relay.
func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Validate checks the bounds declared on the fields. Timeouts and intervals
// must be positive: a zero delivery timeout would expire every send at once.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
