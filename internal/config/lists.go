package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/sydlexius/lineup/internal/normalize"
)

// Lists holds the curated term lists that steer genre validation, name
// normalization and festival detection.
type Lists struct {
	BannedGenres   []string          `yaml:"banned_genres"`
	GenreAliases   map[string]string `yaml:"genre_aliases"`
	NameExceptions map[string]string `yaml:"name_exceptions"`
	KnownFestivals []string          `yaml:"known_festivals"`

	bannedSlugs map[string]struct{}
	aliasSlugs  map[string]string
	nameTargets map[string]struct{}
}

// index precomputes slug lookups. Must be called before the Lists is shared.
func (l *Lists) index() {
	l.bannedSlugs = make(map[string]struct{}, len(l.BannedGenres))
	for _, b := range l.BannedGenres {
		if s := normalize.Slug(b); s != "" {
			l.bannedSlugs[s] = struct{}{}
		}
	}
	l.aliasSlugs = make(map[string]string, len(l.GenreAliases))
	for tag, canonical := range l.GenreAliases {
		if s := normalize.Slug(tag); s != "" {
			l.aliasSlugs[s] = canonical
		}
	}
	l.nameTargets = make(map[string]struct{}, len(l.NameExceptions))
	for _, replacement := range l.NameExceptions {
		l.nameTargets[replacement] = struct{}{}
	}
}

// IsBannedGenre reports whether name slug-matches a banned term.
func (l *Lists) IsBannedGenre(name string) bool {
	_, ok := l.bannedSlugs[normalize.Slug(name)]
	return ok
}

// BannedGenreSlugs returns the slugs of all banned terms.
func (l *Lists) BannedGenreSlugs() []string {
	out := make([]string, 0, len(l.bannedSlugs))
	for s := range l.bannedSlugs {
		out = append(out, s)
	}
	return out
}

// GenreAlias returns the canonical genre name a tag spelling maps to.
func (l *Lists) GenreAlias(tag string) (string, bool) {
	canonical, ok := l.aliasSlugs[normalize.Slug(tag)]
	return canonical, ok
}

// NameException returns the replacement for an exact original name.
func (l *Lists) NameException(original string) (string, bool) {
	v, ok := l.NameExceptions[original]
	return v, ok
}

// IsNameExceptionTarget reports whether name is the replacement of some
// name exception.
func (l *Lists) IsNameExceptionTarget(name string) bool {
	_, ok := l.nameTargets[name]
	return ok
}

// DefaultLists returns the built-in lists used when no lists file is configured.
func DefaultLists() *Lists {
	l := &Lists{
		BannedGenres: []string{
			// moods and descriptors
			"chill", "chillout vibes", "happy", "sad", "dark", "melancholic", "energetic", "uplifting",
			"emotional", "groovy", "banger", "bangers", "heavy", "hard", "deep", "dreamy", "sexy",
			"beautiful", "love", "mellow", "relax", "relaxing", "workout", "party", "summer",
			"winter", "night", "morning", "sunset", "vibes", "mood",
			// decades and years
			"60s", "70s", "80s", "90s", "00s", "2000s", "2010s", "2020s", "2019", "2020", "2021",
			"2022", "2023", "2024", "2025", "oldschool", "old school", "retro", "classic", "classics",
			// platforms, formats and promotion
			"soundcloud", "spotify", "youtube", "beatport", "bandcamp", "free download",
			"freedownload", "download", "free", "premiere", "exclusive", "podcast", "radio",
			"radio show", "mix", "mixtape", "dj mix", "dj set", "live set", "set", "live",
			"recording", "remix", "edit", "bootleg", "rework", "original mix", "extended mix",
			"vip", "instrumental", "vocal", "acapella", "boiler room", "cercle", "hor",
			// places and scenes
			"berlin", "amsterdam", "london", "paris", "brussels", "ibiza", "detroit", "rotterdam",
			"uk", "usa", "dutch", "german", "french", "belgian", "italian", "spanish",
			// too generic to be useful
			"music", "dance", "dance music", "electronic music", "club", "club music", "underground",
			"rave", "festival", "dj", "producer", "artist", "new", "other", "various", "unknown",
			"seen live", "favorites", "favourite", "female vocalists", "male vocalists",
		},
		GenreAliases: map[string]string{
			"dnb":          "Drum and Bass",
			"d&b":          "Drum and Bass",
			"d'n'b":        "Drum and Bass",
			"drum n bass":  "Drum and Bass",
			"drum'n'bass":  "Drum and Bass",
			"drum & bass":  "Drum and Bass",
			"drumandbass":  "Drum and Bass",
			"ukg":          "UK Garage",
			"uk garage":    "UK Garage",
			"hip hop":      "Hip-Hop",
			"hiphop":       "Hip-Hop",
			"hip-hop":      "Hip-Hop",
			"idm":          "IDM",
			"ebm":          "EBM",
			"edm":          "EDM",
			"psytrance":    "Psytrance",
			"psy trance":   "Psytrance",
			"psy-trance":   "Psytrance",
		},
		NameExceptions: map[string]string{},
		KnownFestivals: []string{
			"tomorrowland", "awakenings", "dekmantel", "time warp", "timewarp", "sonar festival",
			"sónar", "movement detroit", "kappa futurfestival", "nature one", "melt festival",
			"fusion festival", "ultra music festival", "edc", "defqon", "mysteryland",
			"dour festival", "lowlands", "extrema", "verknipt", "loveland", "dgtl",
			"amsterdam dance event", "labyrinth", "terraforma", "houghton", "field maneuvers",
			"junction 2", "love parade", "airbeat one", "parookaville", "world club dome",
			"pukkelpop", "rampage", "intercell", "monegros", "exit festival", "sziget",
		},
	}
	l.index()
	return l
}

// LoadLists reads a lists YAML file. Sections absent from the file keep
// their built-in defaults.
func LoadLists(path string) (*Lists, error) {
	def := DefaultLists()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("reading lists file: %w", err)
	}
	var file Lists
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing lists file: %w", err)
	}
	if file.BannedGenres == nil {
		file.BannedGenres = def.BannedGenres
	}
	if file.GenreAliases == nil {
		file.GenreAliases = def.GenreAliases
	}
	if file.NameExceptions == nil {
		file.NameExceptions = def.NameExceptions
	}
	if file.KnownFestivals == nil {
		file.KnownFestivals = def.KnownFestivals
	}
	for i, f := range file.KnownFestivals {
		file.KnownFestivals[i] = strings.ToLower(strings.TrimSpace(f))
	}
	file.index()
	return &file, nil
}

// ListStore serves the current Lists and swaps them when the backing file
// changes. All lookups go through Current so a reload is picked up by the
// next call.
type ListStore struct {
	current atomic.Pointer[Lists]
	path    string
	logger  *slog.Logger
}

// NewListStore loads the lists file at path, or the defaults if path is empty.
func NewListStore(path string, logger *slog.Logger) (*ListStore, error) {
	s := &ListStore{path: path, logger: logger.With(slog.String("component", "lists"))}
	if path == "" {
		s.current.Store(DefaultLists())
		return s, nil
	}
	l, err := LoadLists(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(l)
	return s, nil
}

// Current returns the active lists.
func (s *ListStore) Current() *Lists {
	return s.current.Load()
}

// NameException implements normalize.Exceptions.
func (s *ListStore) NameException(original string) (string, bool) {
	return s.Current().NameException(original)
}

// IsNameExceptionTarget implements normalize.Exceptions.
func (s *ListStore) IsNameExceptionTarget(name string) bool {
	return s.Current().IsNameExceptionTarget(name)
}

// IsBannedGenre reports whether name is banned in the active lists.
func (s *ListStore) IsBannedGenre(name string) bool {
	return s.Current().IsBannedGenre(name)
}

// BannedGenreSlugs returns the banned slugs of the active lists.
func (s *ListStore) BannedGenreSlugs() []string {
	return s.Current().BannedGenreSlugs()
}

// GenreAlias looks up a tag in the active alias table.
func (s *ListStore) GenreAlias(tag string) (string, bool) {
	return s.Current().GenreAlias(tag)
}

// KnownFestivals returns the active known-festival names (lower-case).
func (s *ListStore) KnownFestivals() []string {
	return s.Current().KnownFestivals
}

// Watch reloads the lists whenever the file changes, until ctx is canceled.
// A file that fails to parse leaves the previous lists active. Watching the
// parent directory keeps editors that replace the file by rename working.
func (s *ListStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating lists watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching lists directory: %w", err)
	}

	// Editors often emit several events per save; coalesce them.
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(250 * time.Millisecond)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("lists watcher error", "error", err)
		case <-debounce.C:
			s.reload()
		}
	}
}

func (s *ListStore) reload() {
	l, err := LoadLists(s.path)
	if err != nil {
		s.logger.Warn("keeping previous lists", "error", err)
		return
	}
	s.current.Store(l)
	s.logger.Info("lists reloaded",
		slog.Int("banned_genres", len(l.BannedGenres)),
		slog.Int("genre_aliases", len(l.GenreAliases)),
		slog.Int("name_exceptions", len(l.NameExceptions)))
}
