package embeddings

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildRuntimeArchive(t *testing.T, root string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	lib := []byte("fake shared object")
	entries := []struct {
		hdr  *tar.Header
		body []byte
	}{
		{&tar.Header{Name: root + "/", Typeflag: tar.TypeDir, Mode: 0755}, nil},
		{&tar.Header{Name: root + "/lib/libonnxruntime.so.1.23.0", Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(lib))}, lib},
		{&tar.Header{Name: root + "/lib/libonnxruntime.so", Typeflag: tar.TypeSymlink, Linkname: "libonnxruntime.so.1.23.0"}, nil},
		{&tar.Header{Name: root + "/lib/escape.so", Typeflag: tar.TypeSymlink, Linkname: "../../etc/passwd"}, nil},
		{&tar.Header{Name: root + "/include/onnxruntime_c_api.h", Typeflag: tar.TypeReg, Mode: 0644, Size: 1}, []byte("x")},
	}
	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(e.hdr))
		if e.body != nil {
			_, err := tw.Write(e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newTestInstaller(t *testing.T, releaseURL string) *RuntimeInstaller {
	t.Setenv("ONNX_PATH", "")
	i := NewRuntimeInstaller(zap.NewNop())
	i.Dir = t.TempDir()
	i.ReleaseURL = releaseURL
	i.goos, i.goarch = "linux", "amd64"
	return i
}

func TestRuntimeInstaller_Install(t *testing.T) {
	archive := buildRuntimeArchive(t, "onnxruntime-linux-x64-1.23.0")
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	i := newTestInstaller(t, srv.URL)
	assert.Empty(t, i.LibraryPath())

	path, err := i.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/v1.23.0/onnxruntime-linux-x64-1.23.0.tgz", requested)
	assert.Equal(t, filepath.Join(i.Dir, "libonnxruntime.so"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake shared object", string(data))

	_, err = os.Lstat(filepath.Join(i.Dir, "escape.so"))
	assert.True(t, os.IsNotExist(err), "links leaving the directory are skipped")
	_, err = os.Stat(filepath.Join(i.Dir, "onnxruntime_c_api.h"))
	assert.True(t, os.IsNotExist(err), "only lib/ entries are extracted")

	assert.Equal(t, path, i.LibraryPath())
}

func TestRuntimeInstaller_EnvOverride(t *testing.T) {
	i := newTestInstaller(t, "http://127.0.0.1:1")
	t.Setenv("ONNX_PATH", "/opt/onnx/libonnxruntime.so")

	path, err := i.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/opt/onnx/libonnxruntime.so", path)
}

func TestRuntimeInstaller_Failures(t *testing.T) {
	t.Run("unsupported platform", func(t *testing.T) {
		i := newTestInstaller(t, "http://127.0.0.1:1")
		i.goos, i.goarch = "plan9", "386"
		_, err := i.Install(context.Background())
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := newTestInstaller(t, srv.URL).Install(context.Background())
		assert.ErrorContains(t, err, "status 404")
	})

	t.Run("library missing from archive", func(t *testing.T) {
		archive := buildRuntimeArchive(t, "onnxruntime-linux-aarch64-1.23.0")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(archive)
		}))
		defer srv.Close()
		_, err := newTestInstaller(t, srv.URL).Install(context.Background())
		assert.ErrorContains(t, err, "not found in archive")
	})
}
