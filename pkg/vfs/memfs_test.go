package vfs

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestMemListDir(t *testing.T) {
	fs := NewMem()
	mtime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fs.AddFile("/src/-Users-yuta-project/session.json", []byte(`{}`), mtime)
	fs.AddFile("/src/-Users-yuta-project/agent.json", []byte(`{}`), mtime)
	fs.AddDir("/src/-Users-yuta-project/subagents")

	t.Run("ListsFilesAndDirs", func(t *testing.T) {
		entries, err := fs.ListDir("/src/-Users-yuta-project")
		if err != nil {
			t.Fatalf("ListDir returned unexpected error: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		// Sorted by name: agent.json, session.json, subagents.
		if entries[0].Name != "agent.json" || entries[0].IsDir {
			t.Errorf("unexpected first entry: %+v", entries[0])
		}
		if entries[2].Name != "subagents" || !entries[2].IsDir {
			t.Errorf("unexpected last entry: %+v", entries[2])
		}
		if !entries[1].ModTime.Equal(mtime) {
			t.Errorf("expected file mtime %v, got %v", mtime, entries[1].ModTime)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := fs.ListDir("/nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NotADirectory", func(t *testing.T) {
		_, err := fs.ListDir("/src/-Users-yuta-project/session.json")
		if !errors.Is(err, ErrNotADirectory) {
			t.Errorf("expected ErrNotADirectory, got %v", err)
		}
	})
}

func TestMemStat(t *testing.T) {
	fs := NewMem()
	mtime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fs.AddFile("/a/b.txt", []byte("hello"), mtime)

	info, err := fs.Stat("/a/b.txt")
	if err != nil {
		t.Fatalf("Stat returned unexpected error: %v", err)
	}
	if info.IsDir || info.Size != 5 || !info.ModTime.Equal(mtime) {
		t.Errorf("unexpected file info: %+v", info)
	}

	dirInfo, err := fs.Stat("/a")
	if err != nil {
		t.Fatalf("Stat on implicit parent dir failed: %v", err)
	}
	if !dirInfo.IsDir {
		t.Error("expected implicit parent to be a directory")
	}

	if _, err := fs.Stat("/a/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemReadWrite(t *testing.T) {
	fs := NewMem()

	t.Run("WriteCreatesParents", func(t *testing.T) {
		if err := fs.WriteFile("/deep/nested/file.txt", []byte("data")); err != nil {
			t.Fatalf("WriteFile returned unexpected error: %v", err)
		}
		if _, err := fs.Stat("/deep/nested"); err != nil {
			t.Errorf("expected parent directory to exist after write: %v", err)
		}
		data, err := fs.ReadFile("/deep/nested/file.txt")
		if err != nil {
			t.Fatalf("ReadFile returned unexpected error: %v", err)
		}
		if !bytes.Equal(data, []byte("data")) {
			t.Errorf("read back %q, want %q", data, "data")
		}
	})

	t.Run("ReadMissing", func(t *testing.T) {
		if _, err := fs.ReadFile("/deep/missing.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InjectedReadFailure", func(t *testing.T) {
		fs.AddFile("/locked.txt", []byte("x"), time.Now())
		fs.FailReads("/locked.txt")
		if _, err := fs.ReadFile("/locked.txt"); !errors.Is(err, ErrRead) {
			t.Errorf("expected ErrRead, got %v", err)
		}
	})

	t.Run("InjectedWriteFailure", func(t *testing.T) {
		fs.FailWrites("/full.txt")
		if err := fs.WriteFile("/full.txt", []byte("x")); !errors.Is(err, ErrWrite) {
			t.Errorf("expected ErrWrite, got %v", err)
		}
	})
}

func TestMemMkdirAll(t *testing.T) {
	fs := NewMem()
	if err := fs.MkdirAll("/x/y/z"); err != nil {
		t.Fatalf("MkdirAll returned unexpected error: %v", err)
	}
	// Idempotent.
	if err := fs.MkdirAll("/x/y/z"); err != nil {
		t.Fatalf("repeated MkdirAll should not fail: %v", err)
	}

	fs.AddFile("/x/file", nil, time.Now())
	if err := fs.MkdirAll("/x/file"); !errors.Is(err, ErrWrite) {
		t.Errorf("expected ErrWrite when path is a file, got %v", err)
	}
}

func TestMemChtimes(t *testing.T) {
	fs := NewMem()
	fs.AddFile("/f", []byte("x"), time.Now())

	want := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	if err := fs.Chtimes("/f", want); err != nil {
		t.Fatalf("Chtimes returned unexpected error: %v", err)
	}
	_, mtime, ok := fs.File("/f")
	if !ok || !mtime.Equal(want) {
		t.Errorf("expected mtime %v, got %v (exists=%v)", want, mtime, ok)
	}

	// A missing path is a write error per the interface contract.
	if err := fs.Chtimes("/missing", want); !errors.Is(err, ErrWrite) {
		t.Errorf("expected ErrWrite for missing path, got %v", err)
	}
}

func TestMemFileBlocksDirectory(t *testing.T) {
	mtime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newFS := func() *Mem {
		fs := NewMem()
		fs.AddFile("/dst/blocker", []byte("x"), mtime)
		return fs
	}

	t.Run("WriteFile", func(t *testing.T) {
		fs := newFS()
		err := fs.WriteFile("/dst/blocker/child.json", []byte("{}"))
		if !errors.Is(err, ErrNotADirectory) {
			t.Fatalf("expected ErrNotADirectory, got %v", err)
		}
		if _, _, ok := fs.File("/dst/blocker/child.json"); ok {
			t.Error("failed write left a phantom file behind")
		}
		// The blocker must still list as a plain file, not a directory.
		entries, err := fs.ListDir("/dst")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name != "blocker" || entries[0].IsDir {
			t.Errorf("blocking file changed identity after failed write: %+v", entries)
		}
	})

	t.Run("MkdirAll", func(t *testing.T) {
		err := newFS().MkdirAll("/dst/blocker/sub")
		if !errors.Is(err, ErrNotADirectory) {
			t.Errorf("expected ErrNotADirectory, got %v", err)
		}
	})

	t.Run("Stat", func(t *testing.T) {
		_, err := newFS().Stat("/dst/blocker/child.json")
		if !errors.Is(err, ErrNotADirectory) {
			t.Errorf("expected ErrNotADirectory, got %v", err)
		}
	})

	t.Run("ReadFile", func(t *testing.T) {
		_, err := newFS().ReadFile("/dst/blocker/child.json")
		if !errors.Is(err, ErrNotADirectory) {
			t.Errorf("expected ErrNotADirectory, got %v", err)
		}
	})

	t.Run("ListDir", func(t *testing.T) {
		_, err := newFS().ListDir("/dst/blocker/sub")
		if !errors.Is(err, ErrNotADirectory) {
			t.Errorf("expected ErrNotADirectory, got %v", err)
		}
	})
}
