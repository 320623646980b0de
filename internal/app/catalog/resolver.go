// Package catalog resolves a filesystem path into an ordered sequence of
// playable units.
package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/wbialy/lektor/internal/domain/book"
)

// RawChapter is one chapter descriptor as reported by the metadata
// reader, before any ordering or title fixups.
type RawChapter struct {
	Title    string
	Start    time.Duration
	Duration time.Duration // 0 when the container does not report it
}

// RawInfo is the container-level metadata supplied by the reader.
type RawInfo struct {
	Title    string        // File-level tag title, may be empty
	Track    int           // Track number tag, 0 when absent
	Duration time.Duration // Total container duration, 0 when unknown
	Chapters []RawChapter  // Empty for plain audio files
}

// MetadataReader introspects a container file. Implementations live in
// infra; the resolver only consumes the raw descriptors.
type MetadataReader interface {
	Read(ctx context.Context, path string) (*RawInfo, error)
}

// Resolver builds catalogs from paths using a metadata reader.
type Resolver struct {
	reader MetadataReader
}

// NewResolver creates a new resolver.
func NewResolver(reader MetadataReader) *Resolver {
	return &Resolver{reader: reader}
}

// audioExtensions lists the file extensions picked up when scanning a
// directory.
var audioExtensions = map[string]struct{}{
	".flac": {},
	".m4a":  {},
	".m4b":  {},
	".mp3":  {},
	".mp4":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
}

// Resolve turns a path into a catalog. A file yields its chapters, or a
// single whole-file unit when it has none. A directory yields one unit
// per audio file inside it, with container chapters expanded in place.
// When a file's metadata cannot be introspected at all, the resolver
// falls back to a whole-file unit of unknown duration instead of
// failing; the returned error is then book.ErrMetadataUnreadable so the
// caller can surface a status message while still playing the audio.
func (r *Resolver) Resolve(ctx context.Context, path string) (*book.Catalog, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return r.resolveDir(ctx, path)
	}

	identity, err := book.DeriveIdentity(path)
	if err != nil {
		return nil, err
	}

	info, err := r.reader.Read(ctx, path)
	if err != nil {
		zlog.Warn().Err(err).Str("path", path).Msg("catalog: metadata unreadable, falling back to single unit")
		cat := buildCatalog(path, identity, &RawInfo{})
		return cat, errors.Mark(err, book.ErrMetadataUnreadable)
	}

	return buildCatalog(path, identity, info), nil
}

// resolveDir scans a directory for audio files and builds one catalog
// over all of them. Files are ordered by their track number tag when
// every pair being compared has one, falling back to the tag title and
// then the filename. Chapters inside one file keep their chapter order.
func (r *Resolver) resolveDir(ctx context.Context, dir string) (*book.Catalog, error) {
	identity, err := book.DeriveIdentity(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read directory %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(book.ErrEmptyCatalog, "no audio files in %s", dir)
	}
	sort.Strings(files)

	var (
		groups  []fileGroup
		readErr error
	)
	for _, fp := range files {
		info, err := r.reader.Read(ctx, fp)
		if err != nil {
			zlog.Warn().Err(err).Str("path", fp).Msg("catalog: metadata unreadable, keeping file with unknown duration")
			if readErr == nil {
				readErr = err
			}
			info = &RawInfo{}
		}
		groups = append(groups, newFileGroup(fp, info))
	}

	sortGroups(groups)

	cat := &book.Catalog{
		Path:     dir,
		Identity: identity,
		Title:    filepath.Base(dir),
	}
	for _, g := range groups {
		cat.Units = append(cat.Units, g.units...)
	}
	for i := range cat.Units {
		cat.Units[i].Index = i
	}

	if readErr != nil {
		return cat, errors.Mark(readErr, book.ErrMetadataUnreadable)
	}
	return cat, nil
}

// fileGroup is the ordered run of units contributed by one scanned file.
type fileGroup struct {
	path  string
	track int
	title string
	units []book.Unit
}

func newFileGroup(path string, info *RawInfo) fileGroup {
	g := fileGroup{path: path, track: info.Track, title: info.Title}

	if len(info.Chapters) > 0 {
		g.units = unitsFromChapters(path, info)
		return g
	}

	title := info.Title
	if title == "" {
		title = titleFromFilename(path)
	}
	g.units = []book.Unit{{
		Title:    title,
		Duration: info.Duration,
		Source:   book.Source{Kind: book.SourceWholeFile, Path: path},
	}}
	return g
}

// sortKey orders files without usable track numbers: the tag title when
// present, otherwise the filename stem.
func (g fileGroup) sortKey() string {
	if g.title != "" {
		return g.title
	}
	return titleFromFilename(g.path)
}

func sortGroups(groups []fileGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.track > 0 && b.track > 0 {
			return a.track < b.track
		}
		return a.sortKey() < b.sortKey()
	})
}

// buildCatalog applies the unit construction rules to raw metadata.
func buildCatalog(path string, identity book.Identity, info *RawInfo) *book.Catalog {
	title := info.Title
	if title == "" {
		title = titleFromFilename(path)
	}

	cat := &book.Catalog{
		Path:     path,
		Identity: identity,
		Title:    title,
	}

	if len(info.Chapters) == 0 {
		cat.Units = []book.Unit{{
			Index:    0,
			Title:    title,
			Duration: info.Duration,
			Source:   book.Source{Kind: book.SourceWholeFile, Path: path},
		}}
		return cat
	}

	cat.Units = unitsFromChapters(path, info)
	return cat
}

// unitsFromChapters emits one unit per reported chapter. Reported order
// is kept when it is already monotonic by start offset; otherwise the
// chapters are stably re-sorted, ties keeping their report order.
func unitsFromChapters(path string, info *RawInfo) []book.Unit {
	chapters := make([]RawChapter, len(info.Chapters))
	copy(chapters, info.Chapters)

	if !monotonicByStart(chapters) {
		sort.SliceStable(chapters, func(i, j int) bool {
			return chapters[i].Start < chapters[j].Start
		})
	}

	units := make([]book.Unit, len(chapters))
	for i, ch := range chapters {
		duration := ch.Duration
		end := ch.Start + duration

		if duration == 0 {
			// Derive the length from the next chapter's start, or from
			// the container total for the final chapter.
			if i+1 < len(chapters) {
				end = chapters[i+1].Start
			} else if info.Duration > 0 {
				end = info.Duration
			} else {
				end = 0
			}
			if end > ch.Start {
				duration = end - ch.Start
			}
		}

		title := ch.Title
		if title == "" {
			title = book.FallbackTitle(i)
		}

		units[i] = book.Unit{
			Index:    i,
			Title:    title,
			Duration: duration,
			Source: book.Source{
				Kind:  book.SourceContainerRange,
				Path:  path,
				Start: ch.Start,
				End:   end,
			},
		}
	}
	return units
}

func monotonicByStart(chapters []RawChapter) bool {
	for i := 1; i < len(chapters); i++ {
		if chapters[i].Start < chapters[i-1].Start {
			return false
		}
	}
	return true
}

func titleFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
