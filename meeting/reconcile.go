/*
reconcile.go - Merge three sources into one duplicate-free set

MERGE RULES:
  1. Current records are authoritative. Duplicates among them (same ID) keep
     the first occurrence.
  2. A legacy record L is a duplicate of a current record C when
       (a) C.ID equals L's synthesized key, or
       (b) C.Identity.LegacyBackRef equals L.Identity.RawID.
     The legacy record is dropped; the current record is never dropped in
     favor of a legacy one.
  3. Staff records live in a disjoint id space. They are merged
     unconditionally but still deduplicated among themselves by ID, since a
     re-fetch may overlap with cached rows.

AMBIGUITY:
  When duplicate status cannot be decided (a legacy record without a raw id,
  or a legacy id claimed by more than one current record) the record is
  treated as distinct and one AmbiguousIdentityError per record is returned
  for audit. An id-less legacy record is keyed by its input position so two
  of them never collapse. Nothing ambiguous is dropped silently.

OUTPUT ORDER:
  Current, then surviving legacy, then staff; input order within each.
*/
package meeting

import (
	"fmt"
	"strconv"
)

type MergeResult struct {
	Meetings    []Meeting
	Ambiguities []*AmbiguousIdentityError

	// DroppedLegacy counts legacy records discarded as duplicates.
	DroppedLegacy int
}

// Merge reconciles the three source outputs.
func Merge(current, legacy, staff []Meeting) MergeResult {
	var res MergeResult
	res.Meetings = make([]Meeting, 0, len(current)+len(legacy)+len(staff))

	seen := make(map[string]bool, cap(res.Meetings))
	currentIDs := make(map[string]bool, len(current))
	claimedBy := make(map[string]string)

	for _, c := range current {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		currentIDs[c.ID] = true
		res.Meetings = append(res.Meetings, c)

		ref := c.Identity.LegacyBackRef
		if ref == "" {
			continue
		}
		if prev, ok := claimedBy[ref]; ok {
			res.Ambiguities = append(res.Ambiguities, &AmbiguousIdentityError{
				Identity: Identity{Source: SourceLegacy, RawID: ref},
				Reason:   fmt.Sprintf("claimed by current meetings %s and %s", prev, c.ID),
			})
			continue
		}
		claimedBy[ref] = c.ID
	}

	for i, l := range legacy {
		if l.Identity.RawID == "" {
			l.ID = anonymousLegacyKey(i)
			res.Ambiguities = append(res.Ambiguities, &AmbiguousIdentityError{
				Identity: l.Identity,
				Reason:   fmt.Sprintf("legacy record has no raw id, kept as %s", l.ID),
			})
			seen[l.ID] = true
			res.Meetings = append(res.Meetings, l)
			continue
		}
		if isLegacyDuplicate(l, currentIDs, claimedBy) || seen[l.ID] {
			res.DroppedLegacy++
			continue
		}
		seen[l.ID] = true
		res.Meetings = append(res.Meetings, l)
	}

	for _, s := range staff {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		res.Meetings = append(res.Meetings, s)
	}

	return res
}

// anonymousLegacyKey keys an id-less legacy record by its input position.
// Legacy raw ids are numeric, so the key cannot match a real record.
func anonymousLegacyKey(i int) string {
	return Identity{Source: SourceLegacy}.Key() + "#" + strconv.Itoa(i)
}

func isLegacyDuplicate(l Meeting, currentIDs map[string]bool, claimedBy map[string]string) bool {
	if l.Identity.RawID == "" {
		return false
	}
	if currentIDs[l.ID] {
		return true
	}
	_, claimed := claimedBy[l.Identity.RawID]
	return claimed
}
