package config

import (
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"

	"flakeledger/crypto"
)

// GenesisState is the parsed form of Genesis.
type GenesisState struct {
	Owner  [20]byte
	Oracle [20]byte
	Alloc  map[[20]byte]*big.Int
}

// Validate checks the values the daemon relies on. Genesis roles are checked
// separately by ParseGenesis because an existing ledger does not need them.
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(strings.TrimSpace(c.RPCAddress)); err != nil {
		errs = append(errs, fmt.Errorf("RPCAddress: %w", err))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("DataDir must be set"))
	}
	if c.RPCReadTimeout < 0 || c.RPCWriteTimeout < 0 || c.RPCIdleTimeout < 0 {
		errs = append(errs, errors.New("rpc timeouts must be non-negative"))
	}
	if c.EventRetention < 0 {
		errs = append(errs, errors.New("EventRetention must be non-negative"))
	}
	if c.RateLimit.RatePerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must be non-negative"))
	}
	if c.RateLimit.RatePerSecond > 0 && c.RateLimit.Burst == 0 {
		errs = append(errs, errors.New("rate_limit.Burst must be positive when a rate is set"))
	}
	if c.Auth.ClockSkewSecs < 0 {
		errs = append(errs, errors.New("auth.ClockSkewSecs must be non-negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseGenesis decodes the genesis roles and allocations.
func (c *Config) ParseGenesis() (*GenesisState, error) {
	owner, err := crypto.ParseAddress(c.Genesis.Owner)
	if err != nil {
		return nil, fmt.Errorf("config: genesis owner: %w", err)
	}
	out := &GenesisState{Owner: owner, Alloc: make(map[[20]byte]*big.Int, len(c.Genesis.Allocations))}
	if strings.TrimSpace(c.Genesis.Oracle) != "" {
		if out.Oracle, err = crypto.ParseAddress(c.Genesis.Oracle); err != nil {
			return nil, fmt.Errorf("config: genesis oracle: %w", err)
		}
	}
	for i, alloc := range c.Genesis.Allocations {
		addr, err := crypto.ParseAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("config: allocation %d: %w", i, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Amount), 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("config: allocation %d: invalid amount %q", i, alloc.Amount)
		}
		if prev, dup := out.Alloc[addr]; dup {
			amount = new(big.Int).Add(prev, amount)
		}
		out.Alloc[addr] = amount
	}
	return out, nil
}
