package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// DefaultONNXRuntimeVersion matches the onnxruntime_go version FastEmbed links against.
const DefaultONNXRuntimeVersion = "1.23.0"

const onnxReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download"

// ErrUnsupportedPlatform indicates the current OS/arch has no ONNX runtime build.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var onnxArchives = map[string]map[string]string{
	"linux":  {"amd64": "linux-x64", "arm64": "linux-aarch64"},
	"darwin": {"amd64": "osx-x86_64", "arm64": "osx-arm64"},
}

var onnxLibraryNames = map[string]string{
	"linux":  "libonnxruntime.so",
	"darwin": "libonnxruntime.dylib",
}

// RuntimeInstaller locates or downloads the ONNX runtime shared library that
// the FastEmbed provider needs.
type RuntimeInstaller struct {
	// Dir receives the library. Defaults to ~/.config/retractd/lib.
	Dir string
	// Version defaults to DefaultONNXRuntimeVersion.
	Version string
	// ReleaseURL is the base of the GitHub release downloads.
	ReleaseURL string
	Client     *http.Client
	Logger     *zap.Logger

	goos, goarch string
}

// NewRuntimeInstaller returns an installer for the current platform.
func NewRuntimeInstaller(logger *zap.Logger) *RuntimeInstaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &RuntimeInstaller{
		Dir:        filepath.Join(home, ".config", "retractd", "lib"),
		Version:    DefaultONNXRuntimeVersion,
		ReleaseURL: onnxReleaseURL,
		Client:     http.DefaultClient,
		Logger:     logger,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

func (i *RuntimeInstaller) platform() (string, error) {
	arch, ok := onnxArchives[i.goos][i.goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, i.goos, i.goarch)
	}
	return arch, nil
}

func (i *RuntimeInstaller) libraryName() string {
	if name, ok := onnxLibraryNames[i.goos]; ok {
		return name
	}
	return "libonnxruntime.so"
}

// LibraryPath returns the library location: ONNX_PATH if set, else the
// managed install if present, else "".
func (i *RuntimeInstaller) LibraryPath() string {
	if envPath := os.Getenv("ONNX_PATH"); envPath != "" {
		return envPath
	}
	managed := filepath.Join(i.Dir, i.libraryName())
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// Install downloads and unpacks the runtime into Dir and returns the library path.
func (i *RuntimeInstaller) Install(ctx context.Context) (string, error) {
	platform, err := i.platform()
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v%s/onnxruntime-%s-%s.tgz", strings.TrimRight(i.ReleaseURL, "/"), i.Version, platform, i.Version)

	if err := os.MkdirAll(i.Dir, 0700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	i.Logger.Info("downloading ONNX runtime", zap.String("url", url))

	resp, err := i.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, i.Version)
	if err := i.extract(resp.Body, prefix); err != nil {
		return "", fmt.Errorf("extracting archive: %w", err)
	}
	return filepath.Join(i.Dir, i.libraryName()), nil
}

// Ensure returns the library path, installing the runtime when missing.
func (i *RuntimeInstaller) Ensure(ctx context.Context) (string, error) {
	if path := i.LibraryPath(); path != "" {
		return path, nil
	}
	path, err := i.Install(ctx)
	if err != nil {
		return "", fmt.Errorf("installing ONNX runtime (set ONNX_PATH to use an existing install): %w", err)
	}
	return path, nil
}

// extract copies lib/ entries of the release tarball flat into Dir.
func (i *RuntimeInstaller) extract(r io.Reader, prefix string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	libName := i.libraryName()
	var foundLib bool

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, prefix) || header.Typeflag == tar.TypeDir {
			continue
		}
		filename := filepath.Base(name)
		dest := filepath.Join(i.Dir, filename)

		switch header.Typeflag {
		case tar.TypeSymlink:
			// Links inside the archive point at sibling files only.
			if strings.Contains(header.Linkname, "/") {
				continue
			}
			_ = os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err != nil {
				i.Logger.Debug("skipping symlink", zap.String("name", filename), zap.Error(err))
				continue
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr); err != nil {
				return fmt.Errorf("writing %s: %w", filename, err)
			}
		default:
			continue
		}

		if filename == libName || strings.HasPrefix(filename, libName+".") {
			foundLib = true
		}
	}

	if !foundLib {
		return fmt.Errorf("library %s not found in archive", libName)
	}
	return nil
}

func writeFile(dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
