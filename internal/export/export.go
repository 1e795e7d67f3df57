// Package export bundles the artifacts of one session into a zstd-compressed
// tar stream led by a TOML manifest.
package export

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
)

const (
	ManifestName  = "manifest.toml"
	FileExtension = ".tar.zst"

	manifestFormat = 1
	entryMode      = 0o644
)

type Manifest struct {
	Format    int             `toml:"format"`
	Session   string          `toml:"session"`
	Device    string          `toml:"device"`
	Created   time.Time       `toml:"created"`
	Exported  time.Time       `toml:"exported"`
	Artifacts []ArtifactEntry `toml:"artifact"`
}

type ArtifactEntry struct {
	Name    string `toml:"name"`
	Kind    string `toml:"kind"`
	Channel string `toml:"channel,omitempty"`
	Size    int64  `toml:"size"`
}

// Write streams the bundle for id to w. Artifacts still being appended to
// are cut at the size observed when they were opened.
func Write(ctx context.Context, w io.Writer, store journal.Store, id session.ID, now time.Time) (Manifest, error) {
	errFactory := errors.New()

	artifacts, err := journal.NewRegistry(store).Artifacts(ctx, id)
	if err != nil {
		return Manifest{}, err
	}
	if len(artifacts) == 0 {
		return Manifest{}, errFactory.WithData(ErrEmptySession, string(id))
	}

	type opened struct {
		entry ArtifactEntry
		body  io.ReadCloser
	}

	files := make([]opened, 0, len(artifacts))
	defer func() {
		for _, f := range files {
			f.body.Close()
		}
	}()

	manifest := Manifest{
		Format:   manifestFormat,
		Session:  string(id),
		Device:   id.Device(),
		Created:  id.Created(),
		Exported: now.UTC(),
	}

	for _, a := range artifacts {
		body, size, err := store.Open(ctx, a.Name)
		if err != nil {
			return Manifest{}, err
		}
		entry := ArtifactEntry{Name: a.Name, Kind: a.Kind.String(), Channel: string(a.Channel), Size: size}
		files = append(files, opened{entry: entry, body: body})
		manifest.Artifacts = append(manifest.Artifacts, entry)
	}

	manifestData, err := toml.Marshal(manifest)
	if err != nil {
		return Manifest{}, errFactory.Wrap(ErrWriteFailed, err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return Manifest{}, errFactory.Wrap(ErrWriteFailed, err)
	}
	tw := tar.NewWriter(zw)

	writeEntry := func(name string, size int64, body io.Reader) error {
		hdr := &tar.Header{
			Name:    name,
			Mode:    entryMode,
			Size:    size,
			ModTime: manifest.Exported,
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return errFactory.Wrap(ErrWriteFailed, err)
		}
		if _, err := io.CopyN(tw, body, size); err != nil {
			return errFactory.Wrap(ErrWriteFailed, err)
		}
		return nil
	}

	if err := writeEntry(ManifestName, int64(len(manifestData)), bytes.NewReader(manifestData)); err != nil {
		zw.Close()
		return Manifest{}, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return Manifest{}, err
		}
		if err := writeEntry(f.entry.Name, f.entry.Size, f.body); err != nil {
			zw.Close()
			return Manifest{}, err
		}
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return Manifest{}, errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := zw.Close(); err != nil {
		return Manifest{}, errFactory.Wrap(ErrWriteFailed, err)
	}

	return manifest, nil
}

// ReadManifest decodes the manifest of a bundle.
func ReadManifest(r io.Reader) (Manifest, error) {
	errFactory := errors.New()

	zr, err := zstd.NewReader(r)
	if err != nil {
		return Manifest{}, errFactory.Wrap(ErrReadFailed, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return Manifest{}, errFactory.New(ErrMissingManifest)
		}
		if err != nil {
			return Manifest{}, errFactory.Wrap(ErrReadFailed, err)
		}
		if hdr.Name != ManifestName {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return Manifest{}, errFactory.Wrap(ErrReadFailed, err)
		}

		var m Manifest
		if err := toml.Unmarshal(data, &m); err != nil {
			return Manifest{}, errFactory.Wrap(ErrReadFailed, err)
		}
		return m, nil
	}
}
