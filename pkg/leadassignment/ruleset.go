package leadassignment

import (
	"fmt"
	"io"

	"github.com/jordanlanch/crmleads/pkg/models"
	"gopkg.in/yaml.v3"
)

// RuleSet is a YAML document of rules to import:
//
//	rules:
//	  - name: Referrals to Ana
//	    priority: 10
//	    conditions:
//	      lead_sources: [referral]
//	    strategy:
//	      type: specific_user
//	      user_id: 2b7c...
type RuleSet struct {
	Rules []models.RuleRequest `yaml:"rules"`
}

// LoadRuleSet decodes a rule set. Unknown keys are rejected so typos surface early.
func LoadRuleSet(r io.Reader) (*RuleSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var set RuleSet
	if err := dec.Decode(&set); err != nil {
		if err == io.EOF {
			return &set, nil
		}
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	return &set, nil
}
