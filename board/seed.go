package board

import (
	_ "embed"
	"encoding/json"
)

//go:embed seed.json
var seedJSON []byte

// Seed returns a fresh copy of the bundled default dataset. The ids are not yet
// assigned; callers pass the boards through Normalize.
func Seed() Document {
	var doc Document
	if err := json.Unmarshal(seedJSON, &doc); err != nil {
		panic("board: bundled seed is not valid JSON: " + err.Error())
	}
	return doc
}

// SeedJSON returns the raw bundled dataset.
func SeedJSON() []byte {
	return append([]byte(nil), seedJSON...)
}
