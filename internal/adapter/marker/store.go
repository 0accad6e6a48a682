package marker

import (
	"fmt"

	"github.com/semmidev/strata/internal/config"
	"github.com/semmidev/strata/internal/domain"
)

// Open builds the marker store selected by the configuration.
func Open(cfg config.MarkersConfig) (domain.MarkerStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "badger":
		return OpenBadger(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported marker backend: %s", cfg.Backend)
	}
}
