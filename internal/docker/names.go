package docker

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// NamePrefix is used for all dockercloud container names.
const NamePrefix = "dockercloud"

// Adjectives for random name generation (Docker-style).
var adjectives = []string{
	"admiring", "adoring", "agitated", "amazing", "awesome",
	"blissful", "bold", "brave", "busy", "charming",
	"clever", "cool", "dazzling", "determined", "dreamy",
	"eager", "elastic", "elegant", "epic", "festive",
	"focused", "friendly", "gallant", "gifted", "happy",
	"hopeful", "jolly", "keen", "kind", "lucid",
	"magical", "modest", "nifty", "optimistic", "peaceful",
	"practical", "quirky", "relaxed", "serene", "sharp",
	"stoic", "sweet", "tender", "upbeat", "vibrant",
	"vigilant", "wizardly", "youthful", "zealous", "zen",
}

// Nouns for random name generation (Docker-style).
var nouns = []string{
	"albattani", "babbage", "bardeen", "bohr", "curie",
	"darwin", "dijkstra", "einstein", "euclid", "euler",
	"faraday", "fermat", "fermi", "feynman", "galileo",
	"gauss", "hamilton", "hawking", "hopper", "hypatia",
	"kepler", "knuth", "lamport", "liskov", "lovelace",
	"maxwell", "meitner", "mendel", "newton", "noether",
	"pascal", "pike", "poincare", "ritchie", "shannon",
	"tesla", "thompson", "torvalds", "turing", "wozniak",
}

// GenerateRandomName generates a Docker-style random name (adjective-noun).
func GenerateRandomName() string {
	adj := adjectives[rand.IntN(len(adjectives))]
	noun := nouns[rand.IntN(len(nouns))]
	return fmt.Sprintf("%s-%s", adj, noun)
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// SanitizeName maps s onto the engine's container name alphabet
// ([a-zA-Z0-9][a-zA-Z0-9_.-]*). It returns "" when nothing usable remains.
func SanitizeName(s string) string {
	s = invalidNameChars.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.TrimLeft(s, "_.-")
}

// ContainerName generates the agent container name:
// dockercloud-<profile>-<first 8 chars of the instance id>. A missing or
// unusable profile is replaced by a random name.
func ContainerName(profile, instanceID string) string {
	p := SanitizeName(profile)
	if p == "" {
		p = GenerateRandomName()
	}
	suffix := strings.ReplaceAll(instanceID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if suffix == "" {
		return fmt.Sprintf("%s-%s", NamePrefix, p)
	}
	return fmt.Sprintf("%s-%s-%s", NamePrefix, p, suffix)
}
