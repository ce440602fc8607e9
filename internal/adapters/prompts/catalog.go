// Package prompts loads the canned prompt catalogue shown before the first
// message. A site can override the built-in set with a TOML file.
package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/egdigital/egassist/internal/domain"
)

const (
	catalogPathKey    = "prompts.path"
	catalogConfigDir  = ".egassist"
	catalogConfigFile = "prompts.toml"
	supportedVersion  = 1
)

type catalogSchema struct {
	Version int            `toml:"version"`
	Prompts []promptSchema `toml:"prompts"`
}

type promptSchema struct {
	ID          string `toml:"id"`
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// Load resolves the catalogue path through viper and reads it. A missing file
// is not an error: the built-in defaults apply.
func Load(cfg *viper.Viper) ([]domain.Prompt, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	if !cfg.IsSet(catalogPathKey) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.SetDefault(catalogPathKey, filepath.Join(homeDir, catalogConfigDir, catalogConfigFile))
	}

	path := cfg.GetString(catalogPathKey)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("read prompt catalogue %q: %w", path, err)
	}

	var file catalogSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompt catalogue %q: %w", path, err)
	}
	if file.Version != supportedVersion {
		return nil, fmt.Errorf("prompt catalogue %q: unsupported version %d", path, file.Version)
	}

	prompts := make([]domain.Prompt, 0, len(file.Prompts))
	for i, p := range file.Prompts {
		if p.Title == "" {
			return nil, fmt.Errorf("prompt catalogue %q: prompt %d has no title", path, i)
		}
		prompts = append(prompts, domain.Prompt{
			ID:          domain.PromptID(p.ID),
			Title:       p.Title,
			Description: p.Description,
		})
	}
	if len(prompts) == 0 {
		return Defaults(), nil
	}
	return prompts, nil
}

// Defaults is the stock HR assistant prompt set.
func Defaults() []domain.Prompt {
	return []domain.Prompt{
		{ID: "bonus", Title: "Am I eligible for the referral bonus?", Description: "Referral bonus eligibility and payout"},
		{ID: "leave-types", Title: "What types of leave can I take?", Description: "Leave categories and how to apply"},
		{ID: "refer", Title: "How do I refer someone?", Description: "Refer a candidate through the careers portal"},
		{ID: "report", Title: "How do I report harassment?", Description: "Confidential reporting channels"},
		{ID: "ticket-status", Title: "How to check ticket status?", Description: "Track your helpdesk requests"},
		{ID: "travel", Title: "Show me the travel reimbursement policy.", Description: "Travel policy summary and claim steps"},
		{ID: "leave-balance", Title: "How do I check my leave balance?", Description: "Where to find remaining leave days"},
		{ID: "ticket-raise", Title: "How to raise a ticket?", Description: "Open a new helpdesk request"},
	}
}
