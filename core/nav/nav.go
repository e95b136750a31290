package nav

import "github.com/somaplus/darasa/core/plan"

type (
	// Entry is a declared navigation target. Requires names the capability
	// that unlocks it; an Entry with no requirement is never locked.
	Entry struct {
		Label       string          `json:"label"`
		Path        string          `json:"path"`
		UpgradePath string          `json:"upgrade_path,omitempty"`
		Requires    plan.Capability `json:"requires,omitempty"`
	}

	// Item is an Entry resolved against a capability set.
	Item struct {
		Entry
		Locked bool `json:"locked"`
	}
)

// Destination is where clicking the item navigates: the upgrade flow when
// locked, the entry's own path otherwise.
func (it Item) Destination() string {
	if it.Locked && it.UpgradePath != "" {
		return it.UpgradePath
	}
	return it.Path
}

// ConsumerEntries is the consumer dashboard sidebar, in declaration order.
var ConsumerEntries = []Entry{
	{Label: "Overview", Path: "/dashboard/consumer"},
	{Label: "Modules", Path: "/dashboard/consumer/modules", UpgradePath: "/subscription", Requires: plan.CapModules},
	{Label: "Schedule", Path: "/dashboard/consumer/schedule", UpgradePath: "/subscription", Requires: plan.CapSchedule},
	{Label: "Resume", Path: "/dashboard/consumer/resume", UpgradePath: "/subscription", Requires: plan.CapResume},
	{Label: "Ask a Tutor", Path: "/dashboard/consumer/ask-tutor", UpgradePath: "/subscription", Requires: plan.CapAskTutor},
	{Label: "Magazine", Path: "/dashboard/consumer/magazine", UpgradePath: "/subscription", Requires: plan.CapPage},
}

// Filter resolves entries against a capability set, preserving declaration
// order. Pure given its two inputs.
func Filter(caps plan.CapabilitySet, entries []Entry) []Item {
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		locked := e.Requires != "" && !caps.Granted(e.Requires)
		items = append(items, Item{Entry: e, Locked: locked})
	}
	return items
}
