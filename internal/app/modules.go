package app

import (
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/modules/counter"
	"github.com/yxonic/fret/modules/linear"
)

// coreModules is the list of configurable types compiled into the fret
// binary.
var coreModules = []registry.Module{
	&counter.Module{},
	&linear.Module{},
}
