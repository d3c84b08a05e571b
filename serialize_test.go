package pthash

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	pterrors "github.com/tamirms/pthash/errors"
)

func buildSingleForTest(t *testing.T, keys [][]byte, opts ...BuildOption) *Single {
	t.Helper()
	fn, err := Build(context.Background(), SliceKeys(keys), opts...)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return fn
}

func TestSingleRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 5000, 24)
	cases := []struct {
		name string
		opts []BuildOption
	}{
		{"minimal dictionary", nil},
		{"minimal compact", []BuildOption{WithEncoder(EncoderCompactBlocks)}},
		{"minimal ef", []BuildOption{WithEncoder(EncoderEliasFano)}},
		{"non-minimal", []BuildOption{NonMinimal()}},
		{"murmur hasher", []BuildOption{WithHasher(HasherMurmur128)}},
		{"alpha one", []BuildOption{WithAlpha(1)}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fn := buildSingleForTest(t, keys, c.opts...)
			blob := marshalFn(t, fn)

			loaded, err := Load(blob)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Seed() != fn.Seed() || loaded.NumKeys() != fn.NumKeys() ||
				loaded.TableSize() != fn.TableSize() || loaded.Minimal() != fn.Minimal() {
				t.Fatal("loaded function geometry differs")
			}
			for _, k := range keys {
				if loaded.Lookup(k) != fn.Lookup(k) {
					t.Fatalf("loaded function disagrees on key %x", k)
				}
			}
		})
	}
}

func TestPartitionedRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 8000, 24)
	fn, err := BuildPartitioned(context.Background(), SliceKeys(keys), WithPartitions(4))
	if err != nil {
		t.Fatalf("BuildPartitioned failed: %v", err)
	}
	blob := marshalFn(t, fn)

	loaded, err := LoadPartitioned(blob)
	if err != nil {
		t.Fatalf("LoadPartitioned failed: %v", err)
	}
	if loaded.NumPartitions() != fn.NumPartitions() {
		t.Fatalf("NumPartitions: got %d, want %d", loaded.NumPartitions(), fn.NumPartitions())
	}
	for _, k := range keys {
		if loaded.Lookup(k) != fn.Lookup(k) {
			t.Fatalf("loaded function disagrees on key %x", k)
		}
	}
}

func TestLoadKindMismatch(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 500, 24)

	single := marshalFn(t, buildSingleForTest(t, keys))
	if _, err := LoadPartitioned(single); !errors.Is(err, pterrors.ErrCorrupted) {
		t.Errorf("LoadPartitioned on single blob: expected ErrCorrupted, got %v", err)
	}

	part, err := BuildPartitioned(context.Background(), SliceKeys(keys), WithPartitions(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSingle(marshalFn(t, part)); !errors.Is(err, pterrors.ErrCorrupted) {
		t.Errorf("LoadSingle on partitioned blob: expected ErrCorrupted, got %v", err)
	}
}

func TestLoadCorruption(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 2000, 24)
	valid := marshalFn(t, buildSingleForTest(t, keys))

	corrupt := func(mutate func(b []byte)) []byte {
		b := make([]byte, len(valid))
		copy(b, valid)
		mutate(b)
		return b
	}

	t.Run("bad magic", func(t *testing.T) {
		b := corrupt(func(b []byte) { b[0] ^= 0xFF })
		if _, err := Load(b); !errors.Is(err, pterrors.ErrInvalidMagic) {
			t.Errorf("expected ErrInvalidMagic, got %v", err)
		}
	})

	t.Run("bad version", func(t *testing.T) {
		b := corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[4:6], 0x7FFF) })
		if _, err := Load(b); !errors.Is(err, pterrors.ErrInvalidVersion) {
			t.Errorf("expected ErrInvalidVersion, got %v", err)
		}
	})

	t.Run("bad kind", func(t *testing.T) {
		b := corrupt(func(b []byte) { binary.LittleEndian.PutUint16(b[6:8], 99) })
		if _, err := Load(b); !errors.Is(err, pterrors.ErrCorrupted) {
			t.Errorf("expected ErrCorrupted, got %v", err)
		}
	})

	t.Run("flipped section byte", func(t *testing.T) {
		b := corrupt(func(b []byte) { b[len(b)/2] ^= 0xFF })
		if _, err := Load(b); !errors.Is(err, pterrors.ErrChecksumFailed) {
			t.Errorf("expected ErrChecksumFailed, got %v", err)
		}
	})

	t.Run("flipped header byte", func(t *testing.T) {
		// The seed field is covered by the header checksum.
		b := corrupt(func(b []byte) { b[17] ^= 0xFF })
		if _, err := Load(b); !errors.Is(err, pterrors.ErrChecksumFailed) {
			t.Errorf("expected ErrChecksumFailed, got %v", err)
		}
	})

	t.Run("flipped footer byte", func(t *testing.T) {
		b := corrupt(func(b []byte) { b[len(b)-32] ^= 0xFF })
		if _, err := Load(b); !errors.Is(err, pterrors.ErrChecksumFailed) {
			t.Errorf("expected ErrChecksumFailed, got %v", err)
		}
	})

	t.Run("truncation", func(t *testing.T) {
		for _, cut := range []int{0, 1, 63, 64, len(valid) / 2, len(valid) - 1} {
			if _, err := Load(valid[:cut]); err == nil {
				t.Errorf("truncation at %d not detected", cut)
			}
		}
	})

	t.Run("trailing garbage", func(t *testing.T) {
		b := append(append([]byte{}, valid...), 0xAB, 0xCD)
		// Extra bytes beyond the framed regions are tolerated: the header
		// states the section length and the footer follows it.
		if _, err := Load(b); err != nil {
			t.Errorf("framed parse rejected trailing bytes: %v", err)
		}
	})
}

func TestWriteFileAndOpen(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(rng, 3000, 24)
	fn := buildSingleForTest(t, keys)

	path := filepath.Join(t.TempDir(), "fn.phf")
	if err := WriteFile(fn, path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	opened, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for _, k := range keys {
		if opened.Lookup(k) != fn.Lookup(k) {
			t.Fatalf("opened function disagrees on key %x", k)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Open(filepath.Join(t.TempDir(), "missing.phf")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.phf")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path); err == nil {
			t.Error("expected error for empty file")
		}
	})

	t.Run("corrupted file", func(t *testing.T) {
		rng := newTestRNG(t)
		keys := generateRandomKeys(rng, 200, 24)
		path := filepath.Join(t.TempDir(), "fn.phf")
		if err := WriteFile(buildSingleForTest(t, keys), path); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		data[len(data)/2] ^= 0xFF
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path); !errors.Is(err, pterrors.ErrChecksumFailed) {
			t.Errorf("expected ErrChecksumFailed, got %v", err)
		}
	})
}
