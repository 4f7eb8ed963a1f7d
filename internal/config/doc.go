// Package config provides configuration parsing for the reactive CLI.
//
// The configuration is stored in reactive.json, or in reactive.yaml when no
// JSON file is present. Every field is optional; missing fields take the
// defaults returned by New.
//
// # Configuration File Structure
//
//	{
//	  "name": "editor",
//	  "log": {"level": "debug", "format": "json"},
//	  "debug": {"logEffectRuns": true, "logDisposals": true},
//	  "budget": {"maxReruns": 100, "maxEmitDepth": 10000},
//	  "server": {"host": "localhost", "port": 7070, "shutdownTimeout": "10s"},
//	  "metrics": {"enabled": true, "namespace": "reactive", "path": "/metrics"},
//	  "tracing": {"enabled": true, "tracerName": "reactive"},
//	  "devtools": {"enabled": true, "bufferSize": 256, "eventsPerSecond": 100}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Inspector:", cfg.URL())
package config
