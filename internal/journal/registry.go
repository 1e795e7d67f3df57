package journal

import (
	"context"
	"io"
	"sort"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/session"
)

// SessionInfo describes a session found in storage.
type SessionInfo struct {
	ID        session.ID
	Device    string
	Created   time.Time
	Artifacts []Artifact
}

// Registry enumerates sessions by inspecting artifact names.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// List returns every session with at least one artifact, oldest first.
// Names that are not journal artifacts are ignored.
func (r *Registry) List(ctx context.Context) ([]SessionInfo, error) {
	names, err := r.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	byID := make(map[session.ID]*SessionInfo)
	for _, name := range names {
		a, ok := ParseArtifactName(name)
		if !ok {
			continue
		}

		info, ok := byID[a.Session]
		if !ok {
			info = &SessionInfo{
				ID:      a.Session,
				Device:  a.Session.Device(),
				Created: a.Session.Created(),
			}
			byID[a.Session] = info
		}
		info.Artifacts = append(info.Artifacts, a)
	}

	sessions := make([]SessionInfo, 0, len(byID))
	for _, info := range byID {
		sessions = append(sessions, *info)
	}
	sort.Slice(sessions, func(i, k int) bool {
		if !sessions[i].Created.Equal(sessions[k].Created) {
			return sessions[i].Created.Before(sessions[k].Created)
		}
		return sessions[i].ID < sessions[k].ID
	})

	return sessions, nil
}

// Artifacts returns the artifacts belonging to id.
func (r *Registry) Artifacts(ctx context.Context, id session.ID) ([]Artifact, error) {
	if !id.Valid() {
		return nil, errors.New().WithData(ErrUnknownSession, string(id))
	}

	names, err := r.store.List(ctx, string(id)+".")
	if err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(names))
	for _, name := range names {
		if a, ok := ParseArtifactName(name); ok && a.Session == id {
			artifacts = append(artifacts, a)
		}
	}

	return artifacts, nil
}

// Locate resolves the storage locations of a session's artifacts.
func (r *Registry) Locate(ctx context.Context, id session.ID) ([]string, error) {
	artifacts, err := r.Artifacts(ctx, id)
	if err != nil {
		return nil, err
	}

	locations := make([]string, len(artifacts))
	for i, a := range artifacts {
		locations[i] = r.store.Locate(a.Name)
	}

	return locations, nil
}

// Delete removes all artifacts of id. A session with no artifacts is not an
// error.
func (r *Registry) Delete(ctx context.Context, id session.ID) error {
	if !id.Valid() {
		return errors.New().WithData(ErrUnknownSession, string(id))
	}

	return r.store.Delete(ctx, string(id)+".")
}

// ReadBinaryRecords reads every record of the binary table stored under
// name. Records decoded before a truncated tail are returned with the error.
func ReadBinaryRecords(ctx context.Context, store Store, name string) ([]BinaryRecord, error) {
	rc, _, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var records []BinaryRecord
	r := NewBinaryReader(rc)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
