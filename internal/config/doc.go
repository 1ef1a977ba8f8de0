// Package config provides layered configuration for jsinspect.
//
// # Architecture
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority (applied by cmd)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← JSINSPECT_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← .jsinspect.toml / .jsinspect.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: Configuration file loading (TOML, YAML, environment variables)
//
// # Usage
//
//	cfg, err := config.Load(config.Options{Path: *configPath})
//	if err != nil {
//	    return err
//	}
//	session := inspector.NewSession(cfg.Session())
//
// # Environment Variables
//
// Short names cover the common settings:
//
//	JSINSPECT_HOST       remote.host
//	JSINSPECT_PORT       remote.port
//	JSINSPECT_TARGET     remote.target
//	JSINSPECT_ROOT       project.root
//	JSINSPECT_LOG_LEVEL  logging.level
//
// Any other JSINSPECT_SECTION_KEY maps to section.key, for example
// JSINSPECT_WATCH_DEBOUNCE_MS sets watch.debounce_ms.
package config
