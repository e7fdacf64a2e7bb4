package bridge

import (
	"errors"
	"os"

	"github.com/pelletier/go-toml/v2"

	domainbridge "minerva/internal/domain/bridge"
	"minerva/internal/errs"
)

type rulesFile struct {
	Rules []domainbridge.Rule `toml:"rules"`
}

// LoadRules reads an ordered responder rule set from a TOML file. Rule order
// in the file is match order; an empty keyword is the catch-all.
func LoadRules(path string) ([]domainbridge.Rule, error) {
	if path == "" {
		return nil, errors.New("rules file path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read rules file %s", path)
	}

	var parsed rulesFile
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		return nil, errs.Wrapf(err, "parse rules file %s", path)
	}
	if len(parsed.Rules) == 0 {
		return nil, errors.New("rules file defines no rules")
	}

	for _, rule := range parsed.Rules {
		if rule.Reply == "" {
			return nil, errors.New("rules file contains a rule without a reply")
		}
	}
	return parsed.Rules, nil
}
