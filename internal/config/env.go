// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment if present. A
// missing file is not an error -- most deployments configure purely through
// flags -- but a malformed one is.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnvOverrides overlays MTPROTO_* environment variables onto cfg and
// table, letting an operator pin a DC endpoint (e.g. behind a proxy) without
// touching flags. Unset variables leave the existing value untouched.
func ApplyEnvOverrides(cfg *Config, table *DCTable) {
	if v := os.Getenv("MTPROTO_NETWORK"); v != "" {
		cfg.Network = v
	}
	if v := os.Getenv("MTPROTO_DC_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DCID = int32(n)
		}
	}
	if v := os.Getenv("MTPROTO_FRAMING"); v != "" {
		cfg.Framing = v
	}

	host := os.Getenv("MTPROTO_HOST")
	port := os.Getenv("MTPROTO_PORT")
	if host != "" {
		cfg.Host = host
	}
	if port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Port = n
		}
	}
	if host != "" && port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			table.Override(DCEndpoint{DCID: cfg.DCID, Environment: cfg.Network, Host: host, Port: n})
		}
	}

	if v := os.Getenv("MTPROTO_API_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.APIID = int32(n)
		}
	}
	if v := os.Getenv("MTPROTO_API_HASH"); v != "" {
		cfg.APIHash = v
	}
}
