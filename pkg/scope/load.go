package scope

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads an entity-configuration map from a JSON file. Scope entries
// get their ScopeName and Entity backfilled from their map position so config
// authors do not have to repeat them.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity config: %w", err)
	}

	var config Config
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to parse entity config: %w", err)
	}

	for entityName, entity := range config {
		for scopeName, sc := range entity.Scopes {
			if sc.ScopeName == "" {
				sc.ScopeName = scopeName
			}
			if sc.Entity == "" {
				sc.Entity = entityName
			}
			entity.Scopes[scopeName] = sc
		}
	}
	return config, nil
}
