// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package authmedia

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsEnumerator detects removable media on Linux by walking
// /sys/block and matching partitions against the mount table. Only
// mounted partitions are reported: an unmounted medium has no
// resolvable filesystem path and therefore cannot back a keystore.
type SysfsEnumerator struct {
	sysRoot    string
	mountsPath string
}

// NewSysfsEnumerator creates an enumerator over the real /sys and
// mount table.
func NewSysfsEnumerator() *SysfsEnumerator {
	return &SysfsEnumerator{sysRoot: "/sys", mountsPath: "/proc/self/mounts"}
}

// newSysfsEnumeratorFrom is the testable constructor: tests point it
// at synthetic sysfs and mounts fixtures.
func newSysfsEnumeratorFrom(sysRoot, mountsPath string) *SysfsEnumerator {
	return &SysfsEnumerator{sysRoot: sysRoot, mountsPath: mountsPath}
}

// List implements Enumerator.
func (e *SysfsEnumerator) List(ctx context.Context) ([]Medium, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mounts, err := readMountTable(e.mountsPath)
	if err != nil {
		return nil, err
	}

	blockDir := filepath.Join(e.sysRoot, "block")
	devices, err := os.ReadDir(blockDir)
	if err != nil {
		return nil, fmt.Errorf("authmedia: reading %s: %w", blockDir, err)
	}

	var media []Medium
	for _, device := range devices {
		deviceName := device.Name()
		removable := readSysfsValue(filepath.Join(blockDir, deviceName, "removable"))
		if removable != "1" {
			continue
		}

		for _, partition := range partitionNames(filepath.Join(blockDir, deviceName), deviceName) {
			mount, ok := mounts["/dev/"+partition]
			if !ok {
				continue
			}

			medium := Medium{
				MountPath:  mount.mountPoint,
				Device:     "/dev/" + partition,
				Label:      filepath.Base(mount.mountPoint),
				Filesystem: mount.filesystem,
				SizeBytes:  partitionSizeBytes(filepath.Join(blockDir, deviceName, partition)),
			}
			if metadata, err := LoadMetadata(medium.MountPath); err == nil {
				medium.IsInitialized = true
				medium.Metadata = metadata
			}
			media = append(media, medium)
		}
	}
	return media, nil
}

// partitionNames lists the partition subdirectories of a block
// device's sysfs directory ("sdb" → ["sdb1", "sdb2"]).
func partitionNames(deviceDir, deviceName string) []string {
	entries, err := os.ReadDir(deviceDir)
	if err != nil {
		return nil
	}
	var partitions []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), deviceName) && entry.Name() != deviceName {
			partitions = append(partitions, entry.Name())
		}
	}
	return partitions
}

// partitionSizeBytes reads a partition's size file (512-byte
// sectors). Returns 0 when unreadable.
func partitionSizeBytes(partitionDir string) int64 {
	sectors, err := strconv.ParseInt(readSysfsValue(filepath.Join(partitionDir, "size")), 10, 64)
	if err != nil {
		return 0
	}
	return sectors * 512
}

// readSysfsValue reads a single-value sysfs file, trimmed. Returns
// the empty string when unreadable.
func readSysfsValue(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// mountEntry is one row of the mount table.
type mountEntry struct {
	mountPoint string
	filesystem string
}

// readMountTable parses a /proc/self/mounts-format file into a
// device → mount entry map.
func readMountTable(path string) (map[string]mountEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("authmedia: opening mount table: %w", err)
	}
	defer file.Close()

	mounts := make(map[string]mountEntry)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[0]] = mountEntry{
			mountPoint: unescapeMountPath(fields[1]),
			filesystem: fields[2],
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("authmedia: reading mount table: %w", err)
	}
	return mounts, nil
}

// unescapeMountPath decodes the octal escapes the kernel uses for
// special characters in mount paths (space is "\040").
func unescapeMountPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}
	var out strings.Builder
	for i := 0; i < len(path); i++ {
		if path[i] == '\\' && i+3 < len(path) {
			if value, err := strconv.ParseUint(path[i+1:i+4], 8, 8); err == nil {
				out.WriteByte(byte(value))
				i += 3
				continue
			}
		}
		out.WriteByte(path[i])
	}
	return out.String()
}
