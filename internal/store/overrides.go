package store

import "budget/internal/core"

// IsActiveForMonth reports whether templateID is not deactivated for
// month. Unknown ids are active.
func (s *Store) IsActiveForMonth(templateID string, month core.Month) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.data.MonthOverrides[month].Contains(templateID)
}

// HasOverride reports whether an override record exists for month, even
// one with an empty deactivation set.
func (s *Store) HasOverride(month core.Month) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.MonthOverrides[month]
	return ok
}

// SetActiveForMonth activates or deactivates templateID for month. The
// month's override record is created on first use and is never removed,
// so reactivating a template leaves an empty record behind. Repeating a
// call with the same arguments changes nothing.
func (s *Store) SetActiveForMonth(templateID string, month core.Month, active bool) {
	s.mutate(func() bool {
		if s.data.MonthOverrides == nil {
			s.data.MonthOverrides = make(map[core.Month]core.MonthOverride)
		}
		current, exists := s.data.MonthOverrides[month]
		if active == !current.Contains(templateID) && exists {
			return false
		}
		if active {
			current = current.Remove(templateID)
		} else {
			current = current.Add(templateID)
		}
		if current.DeactivatedTemplateIDs == nil {
			current.DeactivatedTemplateIDs = []string{}
		}
		s.data.MonthOverrides[month] = current
		return true
	})
}
