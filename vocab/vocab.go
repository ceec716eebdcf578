// Package vocab builds the controlled vocabulary (emote codes) and counts its
// use per transcript into a word x transcript frequency matrix.
package vocab

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/onnwee/chat-tender/backend/labels"
	"github.com/onnwee/chat-tender/backend/twitchapi"
)

// DefaultExtensions are the emote image extensions kept when listing a vocabulary directory.
var DefaultExtensions = []string{".png", ".gif"}

// Item is one countable token.
type Item struct {
	// Name is the canonical token matched against chat words.
	Name string
	// Source records where the item came from (file path or emote set).
	Source string
}

// Blacklist excludes items by canonical name or by source file name.
type Blacklist map[string]struct{}

// NewBlacklist builds a Blacklist from names.
func NewBlacklist(names ...string) Blacklist {
	b := make(Blacklist, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			b[n] = struct{}{}
		}
	}
	return b
}

// Has reports whether name is blacklisted. A nil Blacklist has nothing.
func (b Blacklist) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// DirOptions controls directory listing.
type DirOptions struct {
	// Extensions to keep (with leading dot); empty means DefaultExtensions.
	Extensions []string
	Blacklist  Blacklist
}

// LoadDir lists dir and returns one item per file whose base name (minus
// extension) decodes as a base64 label. Files with other extensions or
// blacklisted names are ignored; undecodable names are skipped with a warning.
// Items are sorted by name.
func LoadDir(dir string, opts DirOptions) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary dir: %w", err)
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	keep := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		keep[strings.ToLower(e)] = struct{}{}
	}
	logger := slog.Default().With(slog.String("component", "vocab"), slog.String("dir", dir))
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fname := e.Name()
		ext := filepath.Ext(fname)
		if _, ok := keep[strings.ToLower(ext)]; !ok {
			continue
		}
		if opts.Blacklist.Has(fname) {
			continue
		}
		name, err := labels.Decode(strings.TrimSuffix(fname, ext))
		if err != nil {
			logger.Warn("cannot decode vocabulary file name", slog.String("file", fname), slog.Any("err", err))
			continue
		}
		if opts.Blacklist.Has(name) {
			continue
		}
		items = append(items, Item{Name: name, Source: filepath.Join(dir, fname)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// LoadDirs merges LoadDir over several directories; a name found in a later
// directory replaces an earlier one.
func LoadDirs(dirs []string, opts DirOptions) ([]Item, error) {
	var lists [][]Item
	for _, d := range dirs {
		items, err := LoadDir(d, opts)
		if err != nil {
			return nil, err
		}
		lists = append(lists, items)
	}
	return Merge(lists...), nil
}

// FromNames builds items from plain token names, e.g. an emote listing from
// the Twitch API.
func FromNames(names []string, source string, blacklist Blacklist) []Item {
	items := make([]Item, 0, len(names))
	for _, n := range names {
		if n == "" || blacklist.Has(n) {
			continue
		}
		items = append(items, Item{Name: n, Source: source})
	}
	return Merge(items)
}

// FromEmotes builds items from a Helix emote listing. Source is the emote
// type, e.g. "globals" or "subscriptions".
func FromEmotes(emotes []twitchapi.Emote, blacklist Blacklist) []Item {
	items := make([]Item, 0, len(emotes))
	for _, e := range emotes {
		if e.Name == "" || blacklist.Has(e.Name) {
			continue
		}
		src := "twitch:" + e.EmoteType
		if e.EmoteType == "" {
			src = "twitch"
		}
		items = append(items, Item{Name: e.Name, Source: src})
	}
	return Merge(items)
}

// Merge unions item lists by name (later lists win) and sorts by name.
func Merge(lists ...[]Item) []Item {
	byName := map[string]Item{}
	for _, l := range lists {
		for _, it := range l {
			byName[it.Name] = it
		}
	}
	out := make([]Item, 0, len(byName))
	for _, it := range byName {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
