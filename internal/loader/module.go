package loader

import "go.uber.org/fx"

// Module provides the bulk Loader to Fx.
var Module = fx.Provide(New)
