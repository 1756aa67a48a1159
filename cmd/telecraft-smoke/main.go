// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// telecraft-smoke dials a data center, runs the auth-key handshake, opens
// an encrypted Sender, invokes a ping, and persists the resulting session
// so a second run can skip straight to reusing it. It exists to exercise
// the full stack end to end; it is not a client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telecraft/mtproto/internal/authkey"
	"github.com/telecraft/mtproto/internal/config"
	"github.com/telecraft/mtproto/internal/mcrypto"
	"github.com/telecraft/mtproto/internal/mtsession"
	"github.com/telecraft/mtproto/internal/resolve"
	"github.com/telecraft/mtproto/internal/sender"
	"github.com/telecraft/mtproto/internal/sessionfile"
	"github.com/telecraft/mtproto/internal/transport"
	"github.com/telecraft/mtproto/internal/updates"
	log "github.com/telecraft/mtproto/pkg/minilog"
)

const BANNER = `telecraft-smoke -- MTProto 2.0 client protocol core, smoke test binary.`

var (
	f_network     = flag.String("network", config.EnvironmentTest, "network: test or prod")
	f_dcID        = flag.Int("dc", 2, "data center id to dial")
	f_framing     = flag.String("framing", config.FramingIntermediate, "transport framing: abridged or intermediate")
	f_host        = flag.String("host", "", "override the dc table's host")
	f_port        = flag.Int("port", 0, "override the dc table's port")
	f_apiID       = flag.Int("api-id", 0, "application api_id")
	f_apiHash     = flag.String("api-hash", "", "application api_hash")
	f_sessionPath = flag.String("session", "telecraft-smoke.session.json", "session file path")
	f_updatesPath = flag.String("updates", "telecraft-smoke.updates.json", "updates state file path")
	f_envFile     = flag.String("env-file", ".env", "optional .env overlay for dc endpoint overrides")
	f_resolver    = flag.String("resolver", "", "DNS server (host:port) to resolve a symbolic dc host, empty for system default")
	f_level       = flag.String("level", "info", "log level: debug, info, warn, error, fatal")
	f_color       = flag.Bool("color", true, "colorize log output")
	f_ringSize    = flag.Int("ring-size", 256, "lines of full-debug history kept for a postmortem dump if the run fails")
)

func usage() {
	fmt.Println(BANNER)
	fmt.Println("usage: telecraft-smoke [option]...")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	level, err := log.ParseLevel(*f_level)
	if err != nil {
		level = log.INFO
	}
	log.AddLogger("stderr", os.Stderr, level, *f_color)

	// diagRing keeps every log line regardless of the console's chosen
	// level, so a failure can be dumped with full context even when the
	// operator ran at -level info.
	diagRing := log.NewRing(*f_ringSize)
	log.AddLogger("ring", diagRing, log.DEBUG, false)

	if err := run(); err != nil {
		for _, line := range diagRing.Dump() {
			fmt.Fprintln(os.Stderr, line)
		}
		log.Fatal("%v", err)
	}
}

func run() error {
	if err := config.LoadDotEnv(*f_envFile); err != nil {
		return fmt.Errorf("loading %s: %w", *f_envFile, err)
	}

	cfg := config.Defaults()
	cfg.Network = *f_network
	cfg.DCID = int32(*f_dcID)
	cfg.Framing = *f_framing
	cfg.Host = *f_host
	cfg.Port = *f_port
	cfg.APIID = int32(*f_apiID)
	cfg.APIHash = *f_apiHash
	cfg.SessionPath = *f_sessionPath
	cfg.UpdatesPath = *f_updatesPath

	table := config.NewDCTable()
	config.ApplyEnvOverrides(&cfg, table)

	if err := cfg.Validate(); err != nil {
		return err
	}

	endpoint, err := cfg.Endpoint(table)
	if err != nil {
		return err
	}
	if err := table.CheckEnvironmentMatch(endpoint.Host, cfg.Network); err != nil {
		return err
	}

	host := endpoint.Host
	if *f_resolver != "" {
		r, err := resolve.NewResolver(*f_resolver)
		if err != nil {
			return err
		}
		ips, err := r.ResolveHost(host)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", host, err)
		}
		host = ips[0].String()
		log.Debug("resolved %s to %s", endpoint.Host, host)
	}

	reg := prometheus.NewRegistry()

	state, authResult, err := loadOrHandshake(cfg, endpoint, host, reg)
	if err != nil {
		return err
	}
	if authResult != nil {
		log.Info("handshake complete: auth_key_id=%x rsa_fingerprint=%d", authResult.AuthKeyID, authResult.RSAFingerprint)
	}

	framer, err := framerFor(cfg.Framing)
	if err != nil {
		return err
	}
	conn, err := transport.Dial(context.Background(), fmt.Sprintf("%s:%d", host, endpoint.Port), framer, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dialing %s:%d: %w", host, endpoint.Port, err)
	}
	defer conn.Close()

	updState, err := sessionfile.LoadUpdates(cfg.UpdatesPath)
	if err != nil {
		log.Debug("no prior updates state at %s, starting fresh: %v", cfg.UpdatesPath, err)
		updState = updates.State{ChannelPts: map[int64]int32{}}
	}

	s, err := sender.New(conn, state, "", nil, reg, sender.DefaultConfig(), cfg.MaxQuickAcks)
	if err != nil {
		return fmt.Errorf("building sender: %w", err)
	}
	defer s.Close(nil)

	engine := updates.New(s, reg, updates.DefaultConfig())
	engine.Seed(updState)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.Ping(ctx, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	log.Info("ping succeeded against dc=%d %s:%d", cfg.DCID, host, endpoint.Port)

	if err := sessionfile.SaveUpdates(cfg.UpdatesPath, engine.Snapshot()); err != nil {
		log.Error("saving updates state: %v", err)
	}
	return nil
}

// loadOrHandshake reuses a saved session if one matches the requested
// endpoint, else dials once just for ExchangeAuthKey and persists the
// result. The handshake connection is always closed before returning: the
// caller dials a fresh connection for the Sender, since the unencrypted
// handshake and the encrypted session don't share transport state.
func loadOrHandshake(cfg config.Config, endpoint config.DCEndpoint, host string, reg prometheus.Registerer) (*mtsession.State, *authkey.Result, error) {
	if saved, err := sessionfile.LoadSession(cfg.SessionPath); err == nil && saved.DCID == cfg.DCID && saved.Host == endpoint.Host {
		authKeyBytes, err := saved.AuthKeyBytes()
		if err != nil {
			return nil, nil, err
		}
		salt, err := saved.ServerSaltBytes()
		if err != nil {
			return nil, nil, err
		}
		sessionID, err := saved.SessionIDBytes()
		if err != nil {
			return nil, nil, err
		}
		state, err := mtsession.NewState(authKeyBytes, salt, sessionID)
		if err != nil {
			return nil, nil, err
		}
		log.Info("reusing saved session %s", cfg.SessionPath)
		return state, nil, nil
	}

	framer, err := framerFor(cfg.Framing)
	if err != nil {
		return nil, nil, err
	}
	handshakeConn, err := transport.Dial(context.Background(), fmt.Sprintf("%s:%d", host, endpoint.Port), framer, 10*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s:%d for handshake: %w", host, endpoint.Port, err)
	}
	defer handshakeConn.Close()

	keyring, err := authkey.DefaultKeyring(cfg.Network)
	if err != nil {
		return nil, nil, err
	}
	result, err := authkey.ExchangeAuthKey(handshakeConn, keyring)
	if err != nil {
		return nil, nil, err
	}

	sessionIDBytes, err := mcrypto.SecureRandomBytes(8)
	if err != nil {
		return nil, nil, err
	}
	var sessionID [8]byte
	copy(sessionID[:], sessionIDBytes)

	state, err := mtsession.NewState(result.AuthKey, result.ServerSalt, sessionID)
	if err != nil {
		return nil, nil, err
	}

	sess := sessionfile.NewSession(cfg.DCID, endpoint.Host, endpoint.Port, cfg.Framing, result.AuthKey, result.ServerSalt, sessionID)
	if err := sessionfile.SaveSession(cfg.SessionPath, sess); err != nil {
		log.Error("saving session: %v", err)
	}

	return state, result, nil
}

func framerFor(framing string) (transport.Framer, error) {
	switch framing {
	case config.FramingAbridged:
		return transport.Abridged{}, nil
	case config.FramingIntermediate:
		return transport.Intermediate{}, nil
	default:
		return nil, fmt.Errorf("unknown framing %q", framing)
	}
}
