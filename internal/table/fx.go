package table

import "go.uber.org/fx"

var Module = fx.Module("table",
	fx.Provide(
		fx.Annotate(NewWriter, fx.ParamTags(`name:"output"`)),
		fx.Annotate(NewReader, fx.ParamTags(`name:"output"`)),
	),
)
