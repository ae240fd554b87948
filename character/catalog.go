package character

import (
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/personabot/personabot/types"
)

// Catalog resolves display labels to character profiles from a YAML
// file. The file is read fresh on every lookup so operators can edit
// characters without a restart; a malformed or missing file fails the
// calling operation instead of crashing the process.
type Catalog struct {
	path   string
	logger *zap.Logger
}

// NewCatalog creates a catalog backed by the YAML file at path.
func NewCatalog(path string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		path:   path,
		logger: logger.With(zap.String("component", "catalog"), zap.String("path", path)),
	}
}

func (c *Catalog) load() (map[string]Profile, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		c.logger.Error("failed to read character catalog", zap.Error(err))
		return nil, types.NewError(types.ErrConfigUnavailable, "character catalog is unavailable").WithCause(err)
	}

	var profiles map[string]Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		c.logger.Error("failed to parse character catalog", zap.Error(err))
		return nil, types.NewError(types.ErrConfigUnavailable, "character catalog is malformed").WithCause(err)
	}

	for label, profile := range profiles {
		if profile.Name == "" {
			profile.Name = label
			profiles[label] = profile
		}
		if err := profiles[label].Validate(); err != nil {
			c.logger.Error("invalid character profile", zap.String("label", label), zap.Error(err))
			return nil, types.Errorf(types.ErrConfigUnavailable, "character catalog entry %q is invalid", label).WithCause(err)
		}
	}
	return profiles, nil
}

// Lookup resolves a display label to its profile.
func (c *Catalog) Lookup(label string) (Profile, error) {
	profiles, err := c.load()
	if err != nil {
		return Profile{}, err
	}
	profile, ok := profiles[label]
	if !ok {
		return Profile{}, types.Errorf(types.ErrUnknownCharacter, "unknown character %q", label)
	}
	return profile, nil
}

// Labels returns all selectable labels in stable order.
func (c *Catalog) Labels() ([]string, error) {
	profiles, err := c.load()
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(profiles))
	for label := range profiles {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}
