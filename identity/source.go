package identity

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Source names the application that embeds the SDK.
type Source struct {
	Name    string
	Version string
}

// Header formats the source tracking header value "{name};{version}".
func (s Source) Header() string {
	return s.Name + ";" + s.Version
}

type sourceResolver struct {
	explicit   *Source
	buildInfo  func() (*debug.BuildInfo, bool)
	executable func() (string, error)
}

// SourceOption configures ResolveSource.
type SourceOption func(*sourceResolver)

// WithExplicitSource makes the application identity an opt-in declaration that takes
// precedence over anything discovered from the binary.
func WithExplicitSource(name, version string) SourceOption {
	return func(r *sourceResolver) {
		if strings.TrimSpace(name) == "" {
			return
		}
		if version == "" {
			version = UnknownVersion
		}
		r.explicit = &Source{Name: name, Version: version}
	}
}

func withBuildInfo(fn func() (*debug.BuildInfo, bool)) SourceOption {
	return func(r *sourceResolver) { r.buildInfo = fn }
}

func withExecutable(fn func() (string, error)) SourceOption {
	return func(r *sourceResolver) { r.executable = fn }
}

// ResolveSource determines the calling application. It tries, in order: an explicit
// declaration, the main module recorded in the build metadata, and the executable
// name with an unknown version. It never fails; ok is false when nothing is known.
func ResolveSource(opts ...SourceOption) (src Source, ok bool) {
	r := &sourceResolver{buildInfo: debug.ReadBuildInfo, executable: os.Executable}
	for _, opt := range opts {
		opt(r)
	}

	if r.explicit != nil {
		if src, ok := sanitized(*r.explicit); ok {
			return src, true
		}
	}

	if info, found := r.buildInfo(); found && info.Main.Path != "" {
		version := info.Main.Version
		if version == "" || version == "(devel)" {
			version = UnknownVersion
		}
		if src, ok := sanitized(Source{Name: info.Main.Path, Version: strings.TrimPrefix(version, "v")}); ok {
			return src, true
		}
	}

	if exe, err := r.executable(); err == nil && exe != "" {
		name := strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
		if name != "." {
			if src, ok := sanitized(Source{Name: name, Version: UnknownVersion}); ok {
				return src, true
			}
		}
	}

	return Source{}, false
}

// sanitized makes src safe to send as a header value. ok is false when no name is left.
func sanitized(src Source) (Source, bool) {
	src.Name = sanitizeHeaderPart(src.Name)
	src.Version = sanitizeHeaderPart(src.Version)
	if src.Version == "" {
		src.Version = UnknownVersion
	}
	return src, src.Name != ""
}

// Tracking holds the precomputed tracking header values for one process.
type Tracking struct {
	SDK       string
	Source    string
	HasSource bool
}

// NewTracking formats the header values once so requests only copy strings.
func NewTracking(sdk SDKIdentity, repositoryHost string, src Source, hasSource bool) Tracking {
	t := Tracking{SDK: TrackingHeader(sdk, repositoryHost)}
	if hasSource {
		t.Source = src.Header()
		t.HasSource = true
	}
	return t
}

// DefaultTracking combines Core with the resolved source of the running program.
func DefaultTracking() Tracking {
	src, ok := ResolveSource()
	return NewTracking(Core(), DefaultRepositoryHost, src, ok)
}
