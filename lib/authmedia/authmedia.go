// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package authmedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Fixed paths inside an authentication medium, relative to its mount
// point. Protocol constants: a medium initialized by one machine must
// be recognizable on any other.
const (
	// strongroomDir is the directory holding everything strongroom
	// writes to a medium.
	strongroomDir = ".strongroom"

	// metadataFile is the medium's identity document inside
	// strongroomDir.
	metadataFile = "metadata.json"

	// keystoreDir is the keystore root inside strongroomDir; a
	// filesystem keystore is rooted here.
	keystoreDir = "keys"
)

// Metadata is the identity document written to a medium at
// initialization time.
type Metadata struct {
	// User is the human owner this medium authenticates.
	User string `json:"user"`

	// DeviceUID is the medium's unique identity, assigned once at
	// initialization.
	DeviceUID uuid.UUID `json:"device_uid"`
}

// Medium describes one detected removable storage device.
type Medium struct {
	// MountPath is where the medium's filesystem is mounted. All
	// strongroom paths on the medium are relative to this.
	MountPath string

	// Device is the device node ("/dev/sdb1").
	Device string

	// Label is a human-readable name for the medium.
	Label string

	// Filesystem is the mounted filesystem type ("vfat", "exfat").
	Filesystem string

	// SizeBytes is the partition size.
	SizeBytes int64

	// IsInitialized reports whether the medium carries a strongroom
	// metadata document.
	IsInitialized bool

	// Metadata is the parsed identity document, nil when the medium
	// is uninitialized.
	Metadata *Metadata
}

// Enumerator detects removable authentication media. Core code
// consumes this interface only; each platform supplies its own
// adapter, so no OS branching leaks past this boundary.
type Enumerator interface {
	// List returns every detected removable medium with a mounted
	// filesystem. An empty list is not an error.
	List(ctx context.Context) ([]Medium, error)
}

// KeystorePath returns the fixed keystore root on a medium, suitable
// for keystore.FilesystemConfig.Root.
func KeystorePath(medium Medium) string {
	return filepath.Join(medium.MountPath, strongroomDir, keystoreDir)
}

// metadataPath returns the metadata document path under a mount
// point.
func metadataPath(mountPath string) string {
	return filepath.Join(mountPath, strongroomDir, metadataFile)
}

// LoadMetadata reads a medium's identity document. Returns
// fs.ErrNotExist (wrapped) when the medium is uninitialized.
func LoadMetadata(mountPath string) (*Metadata, error) {
	data, err := os.ReadFile(metadataPath(mountPath))
	if err != nil {
		return nil, fmt.Errorf("authmedia: reading metadata: %w", err)
	}
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("authmedia: parsing metadata: %w", err)
	}
	return &metadata, nil
}

// Initialize claims a medium for user: creates the strongroom
// directory tree and writes the identity document with a fresh device
// UID. Fails if the medium is already initialized — re-initializing
// would orphan any keys already stored on it.
func Initialize(medium Medium, user string) (*Metadata, error) {
	if user == "" {
		return nil, fmt.Errorf("authmedia: user is empty")
	}
	if _, err := os.Stat(metadataPath(medium.MountPath)); err == nil {
		return nil, fmt.Errorf("authmedia: medium at %s is already initialized", medium.MountPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("authmedia: probing metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(medium.MountPath, strongroomDir, keystoreDir), 0o700); err != nil {
		return nil, fmt.Errorf("authmedia: creating strongroom directory: %w", err)
	}

	metadata := &Metadata{User: user, DeviceUID: uuid.New()}
	encoded, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("authmedia: encoding metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath(medium.MountPath), append(encoded, '\n'), 0o600); err != nil {
		return nil, fmt.Errorf("authmedia: writing metadata: %w", err)
	}
	return metadata, nil
}
