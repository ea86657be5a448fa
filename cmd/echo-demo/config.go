package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// demoConfig is the optional on-disk configuration for echo-demo, loaded
// with -config. Every field also has a matching flag; flags win when both
// are given.
type demoConfig struct {
	// ListenAddr, if set, makes this process the listening side (node A).
	ListenAddr string `yaml:"listen_addr"`

	// DialAddr and DialPeer make this process the dialing side (node B):
	// it connects to DialAddr expecting DialPeer's identity.
	DialAddr string `yaml:"dial_addr"`
	DialPeer string `yaml:"dial_peer"`

	// PrivateKeyHex pins this node's identity across restarts; if empty a
	// fresh Ed25519 key is generated and printed so a peer can dial back.
	PrivateKeyHex string `yaml:"private_key_hex"`
}

func loadConfig(path string) (demoConfig, error) {
	var cfg demoConfig
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
