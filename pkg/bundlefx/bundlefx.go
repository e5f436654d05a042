// bundlefx/bundlefx.go
package bundlefx

import (
	"github.com/funcgate/funcgate-core/pkg/middleware/auth"
	"github.com/funcgate/funcgate-core/pkg/middleware/logger"
	"github.com/funcgate/funcgate-core/pkg/middleware/metrics"
	"go.uber.org/fx"
)

// Module provided to fx
var Module = fx.Options(
	auth.Module,
	logger.Module,
	metrics.Module,
)
