package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/spf13/viper"
)

// LoadCatalog reads an ordered card list from a TOML/YAML/JSON file:
//
//	[[cards]]
//	id = "NU"
//	cut_day = 6
//	due_day = 26
//	due_offset = 0
//
// File order is kept; it decides ranking ties.
func LoadCatalog(path string) ([]domain.CycleConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read card catalog %s: %w", path, err)
	}

	var file struct {
		Cards []domain.CycleConfig `mapstructure:"cards"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("unmarshal card catalog %s: %w", path, err)
	}
	return file.Cards, nil
}

// ParseCardCycles parses the compact form "NU:6:26:0,BBVA:15:5:1".
// The offset may be omitted and defaults to 0.
func ParseCardCycles(s string) ([]domain.CycleConfig, error) {
	var out []domain.CycleConfig
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 && len(parts) != 4 {
			return nil, &domain.ErrValidation{Field: "CARD_CYCLES", Message: fmt.Sprintf("%q: want id:cut:due[:offset]", item)}
		}

		nums := make([]int, 3)
		for i, raw := range parts[1:] {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, &domain.ErrValidation{Field: "CARD_CYCLES", Message: fmt.Sprintf("%q: %q is not a number", item, raw)}
			}
			nums[i] = n
		}

		out = append(out, domain.CycleConfig{
			CardID:    strings.TrimSpace(parts[0]),
			CutDay:    nums[0],
			DueDay:    nums[1],
			DueOffset: nums[2],
		})
	}
	return out, nil
}
