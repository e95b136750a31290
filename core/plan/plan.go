package plan

import (
	"strings"

	"github.com/pkg/errors"
)

// Tier is a normalized subscription level.
type Tier string

// Dashboard tiers, lowest to highest.
const (
	TierStarter      Tier = "Starter"
	TierPremium      Tier = "Premium"
	TierProLearner   Tier = "Pro Learner"
	TierEliteScholar Tier = "Elite Scholar"
)

// Catalog tiers, lowest to highest. The catalog reuses "Premium" as its top tier;
// the two tier scales are otherwise unrelated and must not be mixed.
const (
	TierFree  Tier = "Free"
	TierBasic Tier = "Basic"
)

// Capability keys. Adding a key here must be mirrored in CapabilitySet
// and in every Scheme table; Granted enumerates the closed set.
type Capability string

const (
	CapModules  Capability = "modules"
	CapSchedule Capability = "schedule"
	CapResume   Capability = "resume"
	CapAskTutor Capability = "askTutor"
	CapPage     Capability = "page"
)

// CapabilitySet maps each feature key to whether it is unlocked.
type CapabilitySet struct {
	Modules  bool `json:"modules"`
	Schedule bool `json:"schedule"`
	Resume   bool `json:"resume"`
	AskTutor bool `json:"askTutor"`
	Page     bool `json:"page"`
}

func (cs CapabilitySet) Granted(c Capability) bool {
	switch c {
	case CapModules:
		return cs.Modules
	case CapSchedule:
		return cs.Schedule
	case CapResume:
		return cs.Resume
	case CapAskTutor:
		return cs.AskTutor
	case CapPage:
		return cs.Page
	}
	return false
}

// AllCapabilities is the administrative capability set: every flag true.
func AllCapabilities() CapabilitySet {
	return CapabilitySet{Modules: true, Schedule: true, Resume: true, AskTutor: true, Page: true}
}

// StatusActive is the only subscription status that unlocks paid capabilities.
const StatusActive = "active"

func IsActiveStatus(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusActive)
}

// matcher maps raw plan-name substrings to a tier. Matchers are checked in
// declaration order; first match wins.
type matcher struct {
	substrings []string
	tier       Tier
}

// Scheme is a closed, ordered tier scale with its normalization rules and
// capability table.
type Scheme struct {
	name     string
	tiers    []Tier // ascending; tiers[0] is the lowest
	matchers []matcher
	table    map[Tier]CapabilitySet
}

var (
	// Dashboard is the learner-dashboard tier scale.
	Dashboard = Scheme{
		name:  "dashboard",
		tiers: []Tier{TierStarter, TierPremium, TierProLearner, TierEliteScholar},
		matchers: []matcher{
			{substrings: []string{"starter"}, tier: TierStarter},
			{substrings: []string{"premium"}, tier: TierPremium},
			{substrings: []string{"pro"}, tier: TierProLearner},
			{substrings: []string{"elite", "platinum"}, tier: TierEliteScholar},
		},
		table: map[Tier]CapabilitySet{
			TierStarter:      {},
			TierPremium:      {Modules: true, Schedule: true},
			TierProLearner:   {Modules: true, Schedule: true, Resume: true},
			TierEliteScholar: AllCapabilities(),
		},
	}

	// Catalog is the content-catalog tier scale, gating magazine page access.
	Catalog = Scheme{
		name:  "catalog",
		tiers: []Tier{TierFree, TierBasic, TierPremium},
		matchers: []matcher{
			{substrings: []string{"free"}, tier: TierFree},
			{substrings: []string{"basic"}, tier: TierBasic},
			{substrings: []string{"premium"}, tier: TierPremium},
		},
		table: map[Tier]CapabilitySet{
			TierFree:    {},
			TierBasic:   {Page: true},
			TierPremium: {Page: true},
		},
	}
)

var ErrUnknownTier = errors.New("unknown plan tier")

func (s Scheme) Name() string { return s.name }

func (s Scheme) Lowest() Tier { return s.tiers[0] }

func (s Scheme) Highest() Tier { return s.tiers[len(s.tiers)-1] }

func (s Scheme) Tiers() []Tier {
	tiers := make([]Tier, len(s.tiers))
	copy(tiers, s.tiers)
	return tiers
}

// Normalize maps a raw subscription plan name to a tier of this scheme.
// Matching is case-insensitive substring containment in fixed priority order;
// no match or empty input yields the lowest tier.
func (s Scheme) Normalize(raw string) Tier {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return s.Lowest()
	}
	for _, m := range s.matchers {
		for _, sub := range m.substrings {
			if strings.Contains(raw, sub) {
				return m.tier
			}
		}
	}
	return s.Lowest()
}

// Capabilities returns the fixed table row for the tier. A tier outside the
// scheme's closed set is a programming error, never a silent default.
func (s Scheme) Capabilities(tier Tier) (CapabilitySet, error) {
	caps, ok := s.table[tier]
	if !ok {
		return CapabilitySet{}, errors.Wrapf(ErrUnknownTier, "%s scheme: %q", s.name, tier)
	}
	return caps, nil
}

// Resolve derives the tier and capability set for a raw subscription record.
// Administrative identities bypass the tables and get every flag.
// A non-active status forces the lowest tier regardless of the plan name.
func (s Scheme) Resolve(rawPlan, status string, admin bool) (Tier, CapabilitySet) {
	if admin {
		return s.Highest(), AllCapabilities()
	}
	tier := s.Lowest()
	if IsActiveStatus(status) {
		tier = s.Normalize(rawPlan)
	}
	caps, _ := s.Capabilities(tier) // Normalize is total over s.tiers
	return tier, caps
}
