package channel

import (
	"fmt"
	"regexp"
	"strings"
)

// GroupPolicy decides which group-title a channel gets.
type GroupPolicy int

const (
	// GroupUpstream passes the upstream group through, else the fallback.
	GroupUpstream GroupPolicy = iota
	// GroupKeyword derives a category from the display name, else "Unsorted".
	GroupKeyword
	// GroupFirstOf takes the first non-empty upstream groups[] entry, else the fallback.
	GroupFirstOf
)

func (p GroupPolicy) String() string {
	switch p {
	case GroupKeyword:
		return "keyword"
	case GroupFirstOf:
		return "first-of"
	}
	return "upstream"
}

// ParseGroupPolicy accepts the names returned by String.
func ParseGroupPolicy(s string) (GroupPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "upstream":
		return GroupUpstream, nil
	case "keyword":
		return GroupKeyword, nil
	case "first-of", "firstof":
		return GroupFirstOf, nil
	}
	return 0, fmt.Errorf("unknown group policy %q", s)
}

// Resolve picks the group for one channel.
func (p GroupPolicy) Resolve(name, group string, groups []string, fallback string) string {
	if fallback == "" {
		fallback = DefaultGroup
	}
	switch p {
	case GroupKeyword:
		if c := Categorize(name); c != "" {
			return c
		}
		return DefaultGroup
	case GroupFirstOf:
		for _, g := range groups {
			if g = strings.TrimSpace(g); g != "" {
				return g
			}
		}
		return fallback
	default:
		if g := strings.TrimSpace(group); g != "" {
			return g
		}
		return fallback
	}
}

type category struct {
	name     string
	keywords []string
}

// categories is checked in order; the first match wins. Keywords are matched
// at word starts (leading space), so "news" hits "Newsmax" but not "Bloomsnews".
var categories = []category{
	{"Movies", []string{" movie", " cinema", " film", " cine ", " hollywood", " westerns", " thriller", " action ", " horror", " box office"}},
	{"News", []string{" news", " cnn ", " cbs ", " nbc ", " abc ", " bloomberg", " weather", " reuters", " euronews", " france 24", " sky news", " al jazeera"}},
	{"Sports", []string{" sport", " espn", " nfl ", " nba ", " mlb ", " nhl ", " golf", " tennis", " soccer", " football", " racing", " boxing", " wwe ", " ufc ", " fight", " poker", " outdoor", " fishing"}},
	{"Kids", []string{" kids", " kid ", " junior", " cartoon", " toon", " nick ", " baby", " family", " anime", " teletubbies", " pokemon"}},
	{"Music", []string{" music", " mtv ", " vevo", " hits", " radio", " concert", " karaoke", " country", " rock ", " jazz", " 80s", " 90s"}},
	{"Comedy", []string{" comedy", " laugh", " funny", " sitcom", " stand up", " standup", " snl ", " humor"}},
	{"Crime", []string{" crime", " court", " detective", " mystery", " forensic", " justice", " cops", " fbi ", " csi ", " unsolved", " true crime"}},
}

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Categorize returns the first category whose keyword appears in name, or "".
func Categorize(name string) string {
	hay := " " + strings.TrimSpace(nonAlphaNum.ReplaceAllString(strings.ToLower(name), " ")) + " "
	for _, c := range categories {
		if containsAny(hay, c.keywords...) {
			return c.name
		}
	}
	return ""
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
