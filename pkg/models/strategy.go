package models

import (
	"encoding/json"
	"fmt"
)

// StrategyType discriminates the assignment strategy variants.
type StrategyType string

const (
	StrategySpecificUser  StrategyType = "specific_user"
	StrategyRoundRobin    StrategyType = "round_robin"
	StrategyLeastAssigned StrategyType = "least_assigned"
	StrategyMostAvailable StrategyType = "most_available"
	StrategySkillBased    StrategyType = "skill_based"
)

// Strategy is the tagged union of dispatch strategies. The concrete types
// below are the only implementations.
type Strategy interface {
	Type() StrategyType
	isStrategy()
}

// SpecificUser always picks one configured user.
type SpecificUser struct {
	UserID string
}

// RoundRobin picks the candidate who was given a lead least recently.
type RoundRobin struct{}

// LeastAssigned picks the candidate with the fewest active assignments made
// today. MaxPerDay of zero means uncapped.
type LeastAssigned struct {
	MaxPerDay int
}

// MostAvailable picks among candidates currently inside their working hours.
// WorkingHours applies to users who have no window of their own.
type MostAvailable struct {
	WorkingHours *WorkingHours
}

// SkillBased picks the candidate covering the largest fraction of Skills.
type SkillBased struct {
	Skills []string
}

func (SpecificUser) Type() StrategyType  { return StrategySpecificUser }
func (RoundRobin) Type() StrategyType    { return StrategyRoundRobin }
func (LeastAssigned) Type() StrategyType { return StrategyLeastAssigned }
func (MostAvailable) Type() StrategyType { return StrategyMostAvailable }
func (SkillBased) Type() StrategyType    { return StrategySkillBased }

func (SpecificUser) isStrategy()  {}
func (RoundRobin) isStrategy()    {}
func (LeastAssigned) isStrategy() {}
func (MostAvailable) isStrategy() {}
func (SkillBased) isStrategy()    {}

// StrategySpec is the flat wire form of a Strategy used in JSON, YAML and
// storage. Only the fields belonging to Type are read.
type StrategySpec struct {
	Type         StrategyType  `json:"type" yaml:"type" validate:"required,oneof=specific_user round_robin least_assigned most_available skill_based"`
	UserID       string        `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	MaxPerDay    int           `json:"max_per_day,omitempty" yaml:"max_per_day,omitempty" validate:"gte=0"`
	WorkingHours *WorkingHours `json:"working_hours,omitempty" yaml:"working_hours,omitempty"`
	Skills       []string      `json:"skills,omitempty" yaml:"skills,omitempty"`
}

// Build converts the spec into its variant.
func (s StrategySpec) Build() (Strategy, error) {
	switch s.Type {
	case StrategySpecificUser:
		return SpecificUser{UserID: s.UserID}, nil
	case StrategyRoundRobin:
		return RoundRobin{}, nil
	case StrategyLeastAssigned:
		return LeastAssigned{MaxPerDay: s.MaxPerDay}, nil
	case StrategyMostAvailable:
		return MostAvailable{WorkingHours: s.WorkingHours}, nil
	case StrategySkillBased:
		return SkillBased{Skills: s.Skills}, nil
	}
	return nil, fmt.Errorf("unknown strategy type %q", s.Type)
}

// SpecOf returns the wire form of st. A nil strategy yields a zero spec.
func SpecOf(st Strategy) StrategySpec {
	switch v := st.(type) {
	case SpecificUser:
		return StrategySpec{Type: v.Type(), UserID: v.UserID}
	case RoundRobin:
		return StrategySpec{Type: v.Type()}
	case LeastAssigned:
		return StrategySpec{Type: v.Type(), MaxPerDay: v.MaxPerDay}
	case MostAvailable:
		return StrategySpec{Type: v.Type(), WorkingHours: v.WorkingHours}
	case SkillBased:
		return StrategySpec{Type: v.Type(), Skills: v.Skills}
	}
	return StrategySpec{}
}

// EncodeStrategy serializes st for storage.
func EncodeStrategy(st Strategy) (string, error) {
	if st == nil {
		return "", fmt.Errorf("strategy is required")
	}
	b, err := json.Marshal(SpecOf(st))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeStrategy parses a stored strategy.
func DecodeStrategy(data []byte) (Strategy, error) {
	var spec StrategySpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}
	return spec.Build()
}

// Fallback is the rule-level strategy tried when the primary yields no user.
// Only round_robin, least_assigned and specific_user are allowed.
type Fallback struct {
	Type   StrategyType `json:"type" yaml:"type" validate:"required,oneof=round_robin least_assigned specific_user"`
	UserID string       `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// FallbackTypes lists the strategy types accepted as a rule fallback.
var FallbackTypes = []StrategyType{StrategyRoundRobin, StrategyLeastAssigned, StrategySpecificUser}

// Strategy converts the fallback into a variant. A least_assigned fallback is uncapped.
func (f Fallback) Strategy() (Strategy, error) {
	switch f.Type {
	case StrategyRoundRobin:
		return RoundRobin{}, nil
	case StrategyLeastAssigned:
		return LeastAssigned{}, nil
	case StrategySpecificUser:
		return SpecificUser{UserID: f.UserID}, nil
	}
	return nil, fmt.Errorf("strategy %q is not allowed as fallback", f.Type)
}
