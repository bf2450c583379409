// Package config implements the configuration store for the Power-Save Controller.
//
// Configuration is layered: compiled baseline defaults, then an optional YAML
// file, then PSC_* environment overrides, validated as a whole. Radio entries
// carry per-link power-save parameter overrides on top of the global defaults.
//
// Architecture References:
//   - Architecture §8.4: Configuration management patterns
//   - Firmware ICD §4: Power-save parameter defaults
package config
