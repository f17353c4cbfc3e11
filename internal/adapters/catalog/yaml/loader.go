package yaml

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	yaml "gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Fallback tierEntry   `yaml:"fallback"`
	Tiers    []tierEntry `yaml:"tiers"`
}

type tierEntry struct {
	Tier         string   `yaml:"tier"`
	DrainPerHour *float64 `yaml:"drain_per_hour"`
	GiftInterval duration `yaml:"gift_interval"`
	NoGift       bool     `yaml:"no_gift"`
	RewardClass  string   `yaml:"reward_class"`
}

type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = duration(parsed)
	return nil
}

// Default returns the catalog compiled into the binary.
func Default() (domain.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string) (domain.Catalog, error) {
	if path == "" {
		return Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default()
		}
		return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	catalog, err := Parse(raw)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

func Parse(raw []byte) (domain.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}

	specs := make([]domain.TierSpec, 0, len(file.Tiers))
	for _, entry := range file.Tiers {
		specs = append(specs, entry.spec())
	}

	catalog, err := domain.NewCatalog(specs, file.Fallback.spec())
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("invalid catalog: %w", err)
	}
	return catalog, nil
}

func (e tierEntry) spec() domain.TierSpec {
	drain := domain.DefaultDrainPerHour
	if e.DrainPerHour != nil {
		drain = *e.DrainPerHour
	}

	return domain.TierSpec{
		Tier:         domain.Tier(e.Tier),
		DrainPerHour: drain,
		GiftInterval: time.Duration(e.GiftInterval),
		NoGift:       e.NoGift,
		RewardClass:  e.RewardClass,
	}
}
