// Command echo-demo runs spec §8 test scenario 3: node A listens on a TCP
// port and node B dials in, negotiates /test/proto/1.0.0, and exchanges a
// length-prefixed "Hello!" with it.
//
// Listener:
//
//	echo-demo -listen 127.0.0.1:4001
//
// Dialer (paste the peer id the listener printed on startup):
//
//	echo-demo -dial 127.0.0.1:4001 -peer <peer-id>
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/corenet/p2pstack/internal/core/muxer/mplex"
	"github.com/corenet/p2pstack/internal/core/negotiation"
	"github.com/corenet/p2pstack/internal/core/security/noise"
	"github.com/corenet/p2pstack/internal/core/switchcore"
	"github.com/corenet/p2pstack/internal/core/upgrader"
	"github.com/corenet/p2pstack/internal/protocol/pubsub"
	"github.com/corenet/p2pstack/pkg/lib/crypto"
	"github.com/corenet/p2pstack/pkg/lib/log"
	pkgif "github.com/corenet/p2pstack/pkg/interfaces"
	"github.com/corenet/p2pstack/pkg/types"
)

var logger = log.Logger("cmd/echo-demo")

func main() {
	var (
		configPath = flag.String("config", "", "optional yaml config file")
		listenAddr = flag.String("listen", "", "TCP address to listen on (node A)")
		dialAddr   = flag.String("dial", "", "TCP address of the listening peer to dial (node B)")
		dialPeer   = flag.String("peer", "", "peer id of the listening side, required with -dial")
		privHex    = flag.String("key", "", "hex-encoded Ed25519 private key; random if empty")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dialAddr != "" {
		cfg.DialAddr = *dialAddr
	}
	if *dialPeer != "" {
		cfg.DialPeer = *dialPeer
	}
	if *privHex != "" {
		cfg.PrivateKeyHex = *privHex
	}
	if cfg.ListenAddr == "" && cfg.DialAddr == "" {
		fmt.Fprintln(os.Stderr, "one of -listen or -dial is required")
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			newIdentity,
			func() *tcpTransport { return &tcpTransport{} },
			func(t *tcpTransport) pkgif.Transport { return t },
		),
		noise.Module,
		mplex.Module,
		negotiation.Module,
		upgrader.Module,
		fx.Provide(switchcore.NewFromParams),
		fx.Provide(func(sw *switchcore.Switch) pkgif.Switch { return sw }),
		pubsub.Module,
		fx.Invoke(run),
		fx.NopLogger,
	)

	app.Run()
}

// newIdentity builds this node's Identity, generating a fresh Ed25519 key
// unless cfg.PrivateKeyHex pins one.
func newIdentity(cfg demoConfig) (pkgif.Identity, error) {
	var priv crypto.PrivateKey
	if cfg.PrivateKeyHex != "" {
		raw, err := hex.DecodeString(cfg.PrivateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("decode private key: %w", err)
		}
		priv, err = crypto.UnmarshalPrivateKey(crypto.KeyTypeEd25519, raw)
		if err != nil {
			return nil, fmt.Errorf("unmarshal private key: %w", err)
		}
	} else {
		var err error
		priv, _, err = crypto.GenerateKeyPair(crypto.KeyTypeEd25519)
		if err != nil {
			return nil, fmt.Errorf("generate key pair: %w", err)
		}
	}
	return pkgif.NewIdentity(priv)
}

// run wires the echo handler, starts listening if configured, and (for the
// dialing side) runs the scenario-3 round trip once the app is up.
func run(lc fx.Lifecycle, cfg demoConfig, sw pkgif.Switch, swConcrete *switchcore.Switch, shutdowner fx.Shutdowner) {
	registerEchoHandler(sw)
	logger.Info("node identity", "peer", sw.LocalPeer().String())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.ListenAddr != "" {
				if err := swConcrete.Listen(cfg.ListenAddr); err != nil {
					return fmt.Errorf("listen: %w", err)
				}
				logger.Info("listening", "addr", cfg.ListenAddr)
				return nil
			}

			peer, err := types.ParsePeerID(cfg.DialPeer)
			if err != nil {
				return fmt.Errorf("parse -peer: %w", err)
			}
			go func() {
				if err := dialAndEcho(sw, peer, cfg.DialAddr); err != nil {
					logger.Error("echo scenario failed", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return nil
		},
	})
}
