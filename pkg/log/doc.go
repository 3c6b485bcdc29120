// Package log provides named loggers for the serp services.
//
// Each component asks for a logger once and keeps it:
//
//	l := log.ForService("search")
//	l.Infof("booted from %s", rawURL)
//	l.Debugf("generation %d superseded", gen) // only with debug enabled
//
// Lines are rendered by a zerolog console writer and carry a "[name>]" prefix
// so output from the orchestrator, the API client and the server can be told
// apart at a glance. Debug output can be enabled for everything with
// SetGlobalDebug, or for single services with EnableDebugFor:
//
//	log.Configure(cfg.Debug, []string{"client"})
//
// The package name collides with the standard library; alias one of them
// when both are needed.
package log
