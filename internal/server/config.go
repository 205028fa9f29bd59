package server

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/agentfelt/agentfelt/internal/game"
)

// Protocol versions advertised to agents. An agent declaring a version below
// MinProtocolVersion is rejected with OUTDATED_CLIENT at join.
const (
	ProtocolVersion    = 1
	MinProtocolVersion = 1
)

// Config is the server-level configuration, populated from flags and
// environment in main.
type Config struct {
	Addr            string
	SessionTTL      time.Duration
	ActionTimeout   time.Duration
	HandDelay       time.Duration
	AbandonGrace    time.Duration
	MinPlayers      int
	AdminEmails     []string
	SessionSecret   string
	SkillDocURL     string
	DefaultSeats    int
	DefaultStack    int
}

// IsAdmin reports whether the email is on the admin allowlist.
func (c Config) IsAdmin(email string) bool {
	if email == "" {
		return false
	}
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

// TableDefinition is one table "name" block in the definitions file. Tables
// listed there are created at boot.
type TableDefinition struct {
	Name       string `hcl:"name,label"`
	SmallBlind int    `hcl:"small_blind"`
	BigBlind   int    `hcl:"big_blind"`
	MaxSeats   int    `hcl:"max_seats,optional"`
	Stack      int    `hcl:"stack,optional"`
	Seed       string `hcl:"seed,optional"`
	MinPlayers int    `hcl:"min_players,optional"`
}

type tableDefinitionsFile struct {
	Tables []TableDefinition `hcl:"table,block"`
}

// LoadTableDefinitions parses an HCL table-definitions file.
func LoadTableDefinitions(path string) ([]TableDefinition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", path, diags.Error())
	}

	var defs tableDefinitionsFile
	if diags := gohcl.DecodeBody(file.Body, nil, &defs); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", path, diags.Error())
	}
	return defs.Tables, nil
}

// GameConfig resolves a definition into a runtime configuration, filling
// unset fields from server defaults.
func (d TableDefinition) GameConfig(server Config) game.Config {
	cfg := game.Config{
		SmallBlind:        d.SmallBlind,
		BigBlind:          d.BigBlind,
		MaxSeats:          d.MaxSeats,
		InitialStack:      d.Stack,
		ActionTimeoutMs:   int(server.ActionTimeout.Milliseconds()),
		MinPlayersToStart: d.MinPlayers,
		Seed:              d.Seed,
	}
	if cfg.MaxSeats == 0 {
		cfg.MaxSeats = server.DefaultSeats
	}
	if cfg.InitialStack == 0 {
		cfg.InitialStack = server.DefaultStack
	}
	if cfg.MinPlayersToStart == 0 {
		cfg.MinPlayersToStart = server.MinPlayers
	}
	return cfg
}
