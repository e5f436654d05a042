package main

import (
	"go.uber.org/fx"

	"github.com/funcgate/funcgate-core/pkg/serverfx"

	// Compiled-in handler packages register themselves into the catalog.
	_ "github.com/funcgate/funcgate-core/pkg/funcs"
)

func main() {
	fx.New(
		serverfx.Module(
			serverfx.WithService("funcgate"),
			serverfx.WithConfigEnv("FUNCGATE_CONFIG"),
			serverfx.WithDefaultConfig("config.toml"),
		),
	).Run()
}
