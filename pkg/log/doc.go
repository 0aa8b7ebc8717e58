/*
Package log provides structured logging for the CodeB control plane.

Built on zerolog for zero-allocation structured output. Init configures a
global logger once at startup; components derive child loggers carrying
their identifying fields:

	logger := log.WithComponent("deploy-engine")
	logger.Info().Str("project", "web").Int("port", 4000).Msg("slot started")

Serve mode emits JSON lines; the console writer is used for interactive
commands. Domain helpers (WithProject, WithTeam, WithToken) attach the
fields operators filter on when tracing a deployment.
*/
package log
