package fs

import (
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	require.NoError(t, Default.WalkDir(dir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, d.Name())
		}
		return nil
	}))
	return names
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "nested", "weapons.aft")

	require.NoError(t, WriteAtomic(nil, name, write("first")))
	require.NoError(t, WriteAtomic(Default, name, write("second")))

	data, err := Default.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, []string{"weapons.aft"}, entries(t, dir))
}

func TestWriteAtomic_Faults(t *testing.T) {
	for name, fault := range map[string]Fault{
		"write":  {FailAfterBytes: 3},
		"sync":   {FailAfterBytes: -1, FailOnSync: true},
		"close":  {FailAfterBytes: -1, FailOnClose: true},
		"rename": {FailAfterBytes: -1, FailOnRename: true},
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			target := filepath.Join(dir, "weapons.aft")
			require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

			ffs := NewFaultyFS(nil)
			ffs.AddRule(TempMarker, fault)

			err := WriteAtomic(ffs, target, write("replacement"))
			require.ErrorIs(t, err, ErrInjected)

			data, err := os.ReadFile(target)
			require.NoError(t, err)
			assert.Equal(t, "old", string(data))
			for _, e := range entries(t, dir) {
				assert.False(t, strings.Contains(e, TempMarker), e)
			}
		})
	}
}

func TestWriteAtomic_CallbackError(t *testing.T) {
	dir := t.TempDir()
	boom := assert.AnError
	err := WriteAtomic(nil, filepath.Join(dir, "x"), func(io.Writer) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Empty(t, entries(t, dir))
}

func TestFaultyFS_PassThrough(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("other", Fault{FailAfterBytes: 0})

	path := filepath.Join(dir, "a.txt")
	f, err := ffs.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, ffs.Rename(path, path+".renamed"))
	data, err := ffs.ReadFile(path + ".renamed")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, ffs.Remove(path+".renamed"))
	assert.Empty(t, entries(t, dir))
}
