package bus

import (
	"fmt"
	"strings"

	"github.com/ricesearch/rice-syntax/internal/config"
	"github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

// NewBus creates a new Bus instance based on the configuration. When
// cfg.EventLog is set the bus records its traffic there.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	if log == nil {
		log = logger.Default()
	}

	var b Bus
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		b = NewMemoryBus(WithLogger(log))

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "rice-syntax"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "rice-syntax-bus",
			Logger:        log,
		})
		if err != nil {
			return nil, err
		}
		b = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.EventLog == "" {
		return b, nil
	}
	el, err := NewEventLogger(cfg.EventLog, true)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return NewLoggedBus(b, el, log), nil
}
