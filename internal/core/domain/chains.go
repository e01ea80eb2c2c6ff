package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownNetwork is returned when a network name is not recognised.
var ErrUnknownNetwork = errors.New("unknown network")

type Network string

const (
	NetworkMainnet  Network = "mainnet"
	NetworkTestnet  Network = "testnet"
	NetworkLocalnet Network = "localnet"
)

// Networks lists the supported networks in CLI order.
var Networks = []Network{NetworkMainnet, NetworkTestnet, NetworkLocalnet}

// NetworkRPCURL maps a network to the archival RPC endpoint polled by default.
var NetworkRPCURL = map[Network]string{
	NetworkMainnet:  "https://archival-rpc.mainnet.near.org",
	NetworkTestnet:  "https://archival-rpc.testnet.near.org",
	NetworkLocalnet: "http://127.0.0.1:3030",
}

// ParseNetwork converts a user supplied name into a Network.
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
	}
	return n, nil
}

// Valid reports whether n is one of the supported networks.
func (n Network) Valid() bool {
	_, ok := NetworkRPCURL[n]
	return ok
}

func (n Network) String() string {
	return string(n)
}
