package splitter

import (
	"log/slog"
	"strings"

	"github.com/randompersona1/ussplitter-server/internal/engine"
	"github.com/randompersona1/ussplitter-server/internal/logging"
)

// quantizedSuffix marks quantized model variants, which the engine lists
// but this service does not support.
const quantizedSuffix = "_q"

// ResolveModel turns the model name requested at admission into the one the
// engine actually runs. It is total: any input yields a usable name.
//
// An empty name, a name missing from the catalog, and a quantized name all
// resolve to the default model; the latter two log a warning so operators
// can see the fallback happen.
func ResolveModel(requested string, catalog engine.Catalog, defaultModel string, logger *slog.Logger) string {
	if logger == nil {
		logger = logging.NewNop()
	}

	model := strings.TrimSpace(requested)
	switch {
	case model == "":
		logger.Info("no model requested, using default",
			logging.String("default", defaultModel),
		)
		return defaultModel
	case !catalog.Contains(model):
		logger.Warn("unknown model requested, using default",
			logging.String("model", model),
			logging.String("default", defaultModel),
		)
		return defaultModel
	case strings.HasSuffix(model, quantizedSuffix):
		logger.Warn("quantized models are not supported, using default",
			logging.String("model", model),
			logging.String("default", defaultModel),
		)
		return defaultModel
	default:
		return model
	}
}
