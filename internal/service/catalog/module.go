package catalog

import "go.uber.org/fx"

// Module provides the customer and item services to Fx.
var Module = fx.Provide(NewCustomers, NewItems)
