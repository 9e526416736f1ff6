package record

import "go.uber.org/fx"

// Module provides the customer and item repositories to Fx.
var Module = fx.Provide(NewCustomers, NewItems)
