// Package airport holds the in-memory airport directory used to enrich
// flight legs. The directory is built once per run and is read-only
// afterwards, so it can be shared between workers without locking.
package airport

import "strings"

// Record is one airport from the reference dataset.
type Record struct {
	// Code is the IATA code. It may be empty.
	Code string
	// Canonical is the ICAO-equivalent code (ourairports gps_code/ident).
	Canonical    string
	Name         string
	Municipality string
	// Country is the country display name.
	Country string
}

// DisplayName is the human-readable name used in composed locations.
func (r Record) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Canonical != "" {
		return r.Canonical
	}
	return r.Code
}

// Collision reports a lookup key that was claimed by more than one record.
// The later record wins.
type Collision struct {
	Key      string
	Previous Record
	Current  Record
}

// Directory maps upper-cased airport codes to records.
type Directory struct {
	byCode map[string]Record
}

// Build indexes every record under each non-empty code it carries. When two
// records claim the same key the later one overwrites the earlier one and a
// Collision is returned for the caller to log.
func Build(records []Record) (*Directory, []Collision) {
	d := &Directory{byCode: make(map[string]Record, len(records)*2)}
	var collisions []Collision

	for _, rec := range records {
		keys := []string{normalize(rec.Code), normalize(rec.Canonical)}
		for i, key := range keys {
			if key == "" {
				continue
			}
			// Same record under IATA and canonical key.
			if i == 1 && key == keys[0] {
				continue
			}
			if prev, ok := d.byCode[key]; ok && prev != rec {
				collisions = append(collisions, Collision{Key: key, Previous: prev, Current: rec})
			}
			d.byCode[key] = rec
		}
	}

	return d, collisions
}

// Lookup returns the record for code. Matching is case-insensitive and exact.
func (d *Directory) Lookup(code string) (Record, bool) {
	if d == nil {
		return Record{}, false
	}
	key := normalize(code)
	if key == "" {
		return Record{}, false
	}
	rec, ok := d.byCode[key]
	return rec, ok
}

// Len is the number of lookup keys.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byCode)
}

func normalize(code string) string {
	return strings.ToUpper(code)
}
