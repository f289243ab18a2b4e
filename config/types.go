package config

// Auth configures how RPC callers prove their identity. Tokens are HS256
// JWTs whose subject is the caller address.
type Auth struct {
	HMACSecret    string `toml:"HMACSecret" yaml:"hmacSecret"`
	HMACSecretEnv string `toml:"HMACSecretEnv" yaml:"hmacSecretEnv"`
	Issuer        string `toml:"Issuer" yaml:"issuer"`
	Audience      string `toml:"Audience" yaml:"audience"`
	ClockSkewSecs int    `toml:"ClockSkewSecs" yaml:"clockSkewSecs"`
}

// RateLimit is a per-client token bucket applied before dispatch.
type RateLimit struct {
	RatePerSecond float64 `toml:"RatePerSecond" yaml:"ratePerSecond"`
	Burst         int     `toml:"Burst" yaml:"burst"`
}

// Logging selects verbosity and an optional rotated log file.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	Env        string `toml:"Env" yaml:"env"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// Telemetry points OpenTelemetry exporters at an OTLP/HTTP collector.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
}

// Allocation credits Amount base units to Address when the ledger is first
// bootstrapped.
type Allocation struct {
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// Genesis describes the initial roles and balances.
type Genesis struct {
	Owner       string       `toml:"Owner" yaml:"owner"`
	Oracle      string       `toml:"Oracle" yaml:"oracle"`
	Allocations []Allocation `toml:"Allocations" yaml:"allocations"`
}
