package model

// IdentifierSet is the resolved identifier triple for one cart item. It is
// derived fresh per evaluation and used only for matching; fields the
// resolver could not fill stay empty.
type IdentifierSet struct {
	CanonicalID   string
	Slug          string
	LegacyShortID string
}

// Values returns the non-empty identifiers in the set.
func (s IdentifierSet) Values() []string {
	vals := make([]string, 0, 3)
	for _, v := range []string{s.CanonicalID, s.Slug, s.LegacyShortID} {
		if v != "" {
			vals = append(vals, v)
		}
	}
	return vals
}
