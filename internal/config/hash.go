package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumManifest is the on-disk .checksums format written next to the
// config file. The config carries the tunnel credential and feed tokens, so
// tampering should be loud.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}

	return nil
}

// Lock computes the config file's hash and writes the .checksums manifest
// next to it. When dryRun is true, the manifest path and hash are returned
// without writing.
func Lock(configPath string, dryRun bool) (manifestPath, hash string, err error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	hash, err = ComputeBlake3Hash(absPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash %s: %w", absPath, err)
	}

	manifest := ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes: map[string]string{
			filepath.Base(absPath): hash,
		},
	}
	manifestPath = filepath.Join(filepath.Dir(absPath), ".checksums")

	if dryRun {
		return manifestPath, hash, nil
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal checksums: %w", err)
	}

	// Restrictive permissions: the manifest pins files holding secrets.
	if err := os.WriteFile(manifestPath, data, 0600); err != nil {
		return "", "", fmt.Errorf("failed to write checksums: %w", err)
	}

	return manifestPath, hash, nil
}

// LoadChecksums reads the .checksums manifest from a directory.
func LoadChecksums(dir string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ".checksums"))
	if err != nil {
		return nil, err
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}

	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}

	return &manifest, nil
}

// verifyConfigHash verifies configPath against the .checksums manifest in its
// directory. A missing manifest skips verification; a manifest that exists
// but does not cover the file, or a hash mismatch, is an error.
func verifyConfigHash(configPath string) error {
	dir := filepath.Dir(configPath)
	manifest, err := LoadChecksums(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	basename := filepath.Base(configPath)
	expectedHash, ok := manifest.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: hookgate config lock --config %s", basename, dir, configPath)
	}

	if err := VerifyFileHash(configPath, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: hookgate config lock --config %s", configPath, err, configPath)
	}

	return nil
}
