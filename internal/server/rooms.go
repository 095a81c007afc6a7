package server

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
)

var adjectives = []string{
	"tiny", "happy", "sleepy", "sparkly", "cozy", "golden", "crimson", "emerald",
	"brave", "calm", "swift", "silent", "bouncy", "merry", "peppy", "gentle",
	"lucky", "shiny", "fuzzy", "bright",
}

var nouns = []string{
	"otter", "panda", "comet", "maple", "ember", "willow", "pixel", "lantern",
	"pebble", "rocket", "meadow", "breeze", "cocoa", "sprout", "marble", "echo",
	"nebula", "canyon", "drizzle", "thimble",
}

// generateRoomID mints a memorable, unused room id of the form
// adjective-noun-noun (e.g. "cozy-otter-comet"). exists reports whether an id
// is already taken.
func generateRoomID(exists func(string) bool) string {
	for {
		id := fmt.Sprintf("%s-%s-%s",
			adjectives[randomIndex(len(adjectives))],
			nouns[randomIndex(len(nouns))],
			nouns[randomIndex(len(nouns))],
		)
		if !exists(id) {
			return id
		}
	}
}

// randomIndex returns a cryptographically secure random index for a slice of
// given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("failed to generate random index:", err)
	}
	return int(n.Int64())
}
