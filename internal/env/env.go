// Package env holds process-wide singletons shared across packages.
package env

import (
	"github.com/thatsimonsguy/netro-controller/internal/config"
)

var Cfg *config.Config
