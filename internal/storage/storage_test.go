package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "bridgekit/pkg/logx"
)

var fixedNow = time.Date(2015, 4, 13, 9, 5, 7, 42*int(time.Millisecond), time.Local)

func clock() time.Time { return fixedNow }

type driverCase struct {
	name string
	open func(t *testing.T) Store
}

func drivers() []driverCase {
	return []driverCase{
		{name: "memfs", open: func(t *testing.T) Store {
			st, err := Open(Config{Driver: "file", Fs: afero.NewMemMapFs(), Now: clock}, logx.Nop())
			require.NoError(t, err)
			return st
		}},
		{name: "osfs", open: func(t *testing.T) Store {
			st, err := Open(Config{Root: t.TempDir(), Now: clock}, logx.Nop())
			require.NoError(t, err)
			return st
		}},
		{name: "sqlite", open: func(t *testing.T) Store {
			st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "blobs.db"), Now: clock}, logx.Nop())
			require.NoError(t, err)
			return st
		}},
	}
}

func forEachDriver(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Helper()
	for _, d := range drivers() {
		d := d
		t.Run(d.name, func(t *testing.T) {
			st := d.open(t)
			t.Cleanup(func() { _ = st.Close() })
			fn(t, st)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		assert.False(t, st.Exists("a.txt"))
		require.NoError(t, st.Save("a.txt", "first"))
		assert.True(t, st.Exists("a.txt"))

		got, err := st.Load("a.txt")
		require.NoError(t, err)
		assert.Equal(t, "first", got)

		require.NoError(t, st.Save("a.txt", "second"))
		got, err = st.Load("a.txt")
		require.NoError(t, err)
		assert.Equal(t, "second", got, "save must fully overwrite")

		require.NoError(t, st.Save("empty.txt", ""))
		got, err = st.Load("empty.txt")
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})
}

func TestLoadMissing(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		_, err := st.Load("missing.txt")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		require.NoError(t, st.Save("keep.txt", "k"))

		ok, err := st.Delete("missing.txt")
		require.NoError(t, err)
		assert.False(t, ok)
		files, err := st.ListFiles()
		require.NoError(t, err)
		assert.Equal(t, []string{"keep.txt"}, files)

		ok, err = st.Delete("keep.txt")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, st.Exists("keep.txt"))
	})
}

func TestListFiles(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		files, err := st.ListFiles()
		require.NoError(t, err)
		assert.Empty(t, files)

		require.NoError(t, st.Save("b.txt", "B"))
		require.NoError(t, st.Save("a.txt", "A"))
		files, err = st.ListFiles()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, files)
	})
}

func TestArchive(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		ok, err := st.Archive("missing.txt")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, st.Save("Hello2.txt", "B"))
		ok, err = st.Archive("Hello2.txt")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, st.Exists("Hello2.txt"))

		archived, err := st.ListArchive()
		require.NoError(t, err)
		assert.Equal(t, []string{"Hello2-2015-04-13 [09 05 07 042].txt"}, archived)
	})
}

func TestArchiveReplacesSameStamp(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		require.NoError(t, st.Save("x.log", "one"))
		ok, err := st.Archive("x.log")
		require.NoError(t, err)
		require.True(t, ok)

		// Same clock reading: the second archive lands on the same stamp.
		require.NoError(t, st.Save("x.log", "two"))
		ok, err = st.Archive("x.log")
		require.NoError(t, err)
		require.True(t, ok)

		archived, err := st.ListArchive()
		require.NoError(t, err)
		assert.Len(t, archived, 1)
	})
}

func TestStorageScenario(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		require.NoError(t, st.Save("Hello1.txt", "A"))
		require.NoError(t, st.Save("Hello2.txt", "B"))

		files, err := st.ListFiles()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Hello1.txt", "Hello2.txt"}, files)

		ok, err := st.Delete("Hello1.txt")
		require.NoError(t, err)
		assert.True(t, ok)
		files, err = st.ListFiles()
		require.NoError(t, err)
		assert.Equal(t, []string{"Hello2.txt"}, files)

		ok, err = st.Archive("Hello2.txt")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, st.Exists("Hello2.txt"))
		files, err = st.ListFiles()
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestDefaultSettingsIgnoreID(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		assert.False(t, st.HasDefaultSettings("Logger", "Logger_1"))
		require.NoError(t, st.SaveDefaultSettings("Logger", "Logger_1", "<Settings/>"))

		assert.True(t, st.HasDefaultSettings("Logger", "Logger_2"))
		assert.True(t, st.Exists("LoggerAppSettings.xml"))
		got, err := st.LoadDefaultSettings("Logger", "anything")
		require.NoError(t, err)
		assert.Equal(t, "<Settings/>", got)
	})
}

func TestModTime(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		aged, ok := st.(Aged)
		require.True(t, ok)
		_, err := aged.ModTime("nope.txt")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, st.Save("m.txt", "m"))
		mt, err := aged.ModTime("m.txt")
		require.NoError(t, err)
		assert.False(t, mt.IsZero())
	})
}

func TestSQLiteModTimeFollowsClock(t *testing.T) {
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "blobs.db"), Now: clock, BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Save("m.txt", "m"))
	mt, err := st.(Aged).ModTime("m.txt")
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(mt), "got %v", mt)
}

func TestOpenRejectsSharedWorkingAndArchiveDir(t *testing.T) {
	tests := []struct {
		name             string
		working, archive string
	}{
		{name: "same name", working: "d", archive: "d"},
		{name: "slashes differ", working: "/d/", archive: "d"},
		{name: "default working", working: "", archive: DefaultWorkingDir},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(Config{Fs: afero.NewMemMapFs(), WorkingDir: tt.working, ArchiveDir: tt.archive}, logx.Nop())
			require.ErrorIs(t, err, ErrSameDir)
		})
	}
}

func TestInvalidFileID(t *testing.T) {
	forEachDriver(t, func(t *testing.T, st Store) {
		for _, id := range []string{"", "..", "a/b.txt", `a\b.txt`} {
			assert.ErrorIs(t, st.Save(id, "x"), ErrInvalidFileID, id)
			assert.False(t, st.Exists(id))
		}
	})
}

func TestStampName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		fileID string
		want   string
	}{
		{fileID: "Hello2.txt", want: "Hello2-2015-04-13 [09 05 07 042].txt"},
		{fileID: "noext", want: "noext-2015-04-13 [09 05 07 042]"},
		{fileID: "a.tar.gz", want: "a.tar-2015-04-13 [09 05 07 042].gz"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.fileID, func(t *testing.T) {
			assert.Equal(t, tt.want, StampName(tt.fileID, fixedNow))
		})
	}
}

func TestSettingsFileID(t *testing.T) {
	assert.Equal(t, "AssetAppSettings.xml", SettingsFileID("Asset", "Asset_1"))
	assert.Equal(t, SettingsFileID("Asset", "x"), SettingsFileID("Asset", "y"))
}

func TestOSLayout(t *testing.T) {
	root := t.TempDir()
	st, err := Open(Config{Root: root, Now: clock}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Save("f.txt", "data"))
	b, err := os.ReadFile(filepath.Join(root, DefaultWorkingDir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))

	ok, err := st.Archive("f.txt")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = os.Stat(filepath.Join(root, DefaultArchiveDir, StampName("f.txt", fixedNow)))
	require.NoError(t, err)
}

func TestIOErrorClassification(t *testing.T) {
	st, err := Open(Config{Fs: afero.NewReadOnlyFs(afero.NewMemMapFs()), Now: clock}, logx.Nop())
	if err == nil {
		// MkdirAll on a read-only fs fails on open; if a backend ever
		// allows it, Save must still surface an IO failure.
		err = st.Save("a.txt", "x")
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIOFailure))
	var ioe *IOError
	require.True(t, errors.As(err, &ioe))
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	_, err := Open(Config{Driver: "none"}, logx.Logger{})
	require.ErrorIs(t, err, ErrDisabled)
	_, err = Open(Config{Driver: "redis"}, logx.Logger{})
	require.Error(t, err)
}
