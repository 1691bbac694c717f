// Package catalog holds the build-time product listing inherited from the
// old static storefront. It exists so identifiers from that era (legacy
// short codes) can still be linked to current slugs without a database
// round-trip.
package catalog

import "strings"

// Entry links one product's slug to its legacy short code.
type Entry struct {
	Slug          string
	LegacyShortID string
	Name          string
}

// Catalog provides slug and legacy-short-code lookups over a fixed entry
// list. Lookups are case-insensitive and never perform I/O.
type Catalog struct {
	bySlug   map[string]Entry
	byLegacy map[string]Entry
}

// New indexes the given entries.
func New(entries []Entry) *Catalog {
	c := &Catalog{
		bySlug:   make(map[string]Entry, len(entries)),
		byLegacy: make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if e.Slug != "" {
			c.bySlug[strings.ToLower(e.Slug)] = e
		}
		if e.LegacyShortID != "" {
			c.byLegacy[strings.ToLower(e.LegacyShortID)] = e
		}
	}
	return c
}

// LegacyShortID returns the legacy short code for a slug.
func (c *Catalog) LegacyShortID(slug string) (string, bool) {
	e, ok := c.bySlug[strings.ToLower(slug)]
	if !ok || e.LegacyShortID == "" {
		return "", false
	}
	return e.LegacyShortID, true
}

// SlugForLegacy returns the slug for a legacy short code.
func (c *Catalog) SlugForLegacy(code string) (string, bool) {
	e, ok := c.byLegacy[strings.ToLower(code)]
	if !ok || e.Slug == "" {
		return "", false
	}
	return e.Slug, true
}

// Default is the equipment listing shipped with the storefront build.
func Default() *Catalog {
	return New([]Entry{
		{Slug: "2hp-aqualion-a3", LegacyShortID: "aql-a3", Name: "AquaLion A3 2HP Aerator"},
		{Slug: "3hp-aqualion-a5", LegacyShortID: "aql-a5", Name: "AquaLion A5 3HP Aerator"},
		{Slug: "paddlewheel-pw4", LegacyShortID: "pw4", Name: "Paddlewheel Aerator PW4"},
		{Slug: "root-blower-rb20", LegacyShortID: "rb20", Name: "Root Blower RB20"},
		{Slug: "diffuser-grid-dg1", LegacyShortID: "dg1", Name: "Diffuser Grid DG1"},
		{Slug: "feed-dispenser-fd2", LegacyShortID: "fd2", Name: "Automatic Feed Dispenser FD2"},
		{Slug: "oxygen-monitor-om9", LegacyShortID: "om9", Name: "Dissolved Oxygen Monitor OM9"},
		{Slug: "pond-liner-hdpe-500", LegacyShortID: "pl500", Name: "HDPE Pond Liner 500 micron"},
		{Slug: "water-pump-wp15", LegacyShortID: "wp15", Name: "Submersible Water Pump WP15"},
		{Slug: "aeration-tube-at25", LegacyShortID: "at25", Name: "Aeration Tube AT25"},
	})
}
