package bus

import (
	"fmt"

	"github.com/kestrel-monitoring/kestrel/internal/domain"
)

// New creates a new event bus based on configuration. Channel is the
// in-process default; nats fans events out across processes.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
