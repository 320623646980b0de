// Package tags reads chapter and title metadata from audio files.
package tags

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/simonhull/audiometa"

	"github.com/wbialy/lektor/internal/app/catalog"
)

// Reader extracts catalog metadata using audiometa. It implements
// catalog.MetadataReader.
type Reader struct{}

// NewReader creates a new metadata reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read opens the audio file and returns its title, total duration and
// chapter table. Chapter offsets come back relative to the start of the
// file, which is what the resolver expects.
func (r *Reader) Read(ctx context.Context, path string) (*catalog.RawInfo, error) {
	f, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	info := &catalog.RawInfo{
		Title:    f.Tags.Title,
		Track:    f.Tags.TrackNumber,
		Duration: f.Audio.Duration,
	}
	if info.Title == "" {
		info.Title = f.Tags.Album
	}

	for _, ch := range f.Chapters {
		info.Chapters = append(info.Chapters, catalog.RawChapter{
			Title:    ch.Title,
			Start:    ch.StartTime,
			Duration: ch.EndTime - ch.StartTime,
		})
	}

	zlog.Ctx(ctx).Debug().
		Str("path", path).
		Str("format", f.Format.String()).
		Int("chapters", len(info.Chapters)).
		Dur("duration", info.Duration).
		Msg("Read audio metadata")

	return info, nil
}
