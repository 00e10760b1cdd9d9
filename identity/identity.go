// Package identity describes who is calling an API: the SDK that builds the request
// and the application that embeds it. The values are computed once at startup and
// attached to every outgoing request by the tracking middleware.
package identity

import (
	"fmt"
	"runtime/debug"
	"strings"
	"unicode"

	"golang.org/x/mod/semver"
	"golang.org/x/net/http/httpguts"
)

// DefaultRepositoryHost is the package registry reported in the SDK tracking header.
const DefaultRepositoryHost = "pkg.go.dev"

// ModulePath is the import path of this module, used to find its own version in
// the build metadata of the running program.
const ModulePath = "github.com/gaborage/sdkcore"

// UnknownVersion is reported when no version metadata is available.
const UnknownVersion = "unknown"

// SDKIdentity names an SDK and its semantic version. The zero value is not valid.
type SDKIdentity struct {
	name    string
	version string
}

// New validates version as a semantic version, with or without the "v" prefix. The
// name must be usable inside a header value: no whitespace, control characters or ';'.
func New(name, version string) (SDKIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SDKIdentity{}, fmt.Errorf("sdk name is required")
	}
	if !validHeaderPart(name) {
		return SDKIdentity{}, fmt.Errorf("sdk name %q contains characters not allowed in a header", name)
	}
	canonical := version
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return SDKIdentity{}, fmt.Errorf("sdk version %q is not a semantic version", version)
	}
	return SDKIdentity{name: name, version: strings.TrimPrefix(canonical, "v")}, nil
}

// MustNew is like New but panics on invalid input. Intended for package-level values.
func MustNew(name, version string) SDKIdentity {
	id, err := New(name, version)
	if err != nil {
		panic(err)
	}
	return id
}

// Name returns the SDK name.
func (i SDKIdentity) Name() string { return i.name }

// Version returns the version without the "v" prefix.
func (i SDKIdentity) Version() string { return i.version }

// IsZero reports whether i was never initialized.
func (i SDKIdentity) IsZero() bool { return i.name == "" }

// String returns "name@version".
func (i SDKIdentity) String() string { return i.name + "@" + i.version }

// TrackingHeader formats the SDK tracking header value
// "{repositoryHost};{name};{version}". An empty host selects DefaultRepositoryHost.
func TrackingHeader(id SDKIdentity, repositoryHost string) string {
	if repositoryHost == "" {
		repositoryHost = DefaultRepositoryHost
	}
	return repositoryHost + ";" + id.name + ";" + id.version
}

// Core returns the identity of this module as linked into the running program.
// Development builds report 0.0.0.
func Core() SDKIdentity {
	return coreFrom(debug.ReadBuildInfo)
}

func coreFrom(read func() (*debug.BuildInfo, bool)) SDKIdentity {
	version := "0.0.0"
	if info, ok := read(); ok {
		if v := moduleVersion(info, ModulePath); v != "" {
			version = v
		}
	}
	id, err := New(ModulePath, version)
	if err != nil {
		return SDKIdentity{name: ModulePath, version: "0.0.0"}
	}
	return id
}

func moduleVersion(info *debug.BuildInfo, path string) string {
	if info.Main.Path == path && semver.IsValid(info.Main.Version) {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		m := dep
		if m.Replace != nil {
			m = m.Replace
		}
		if dep.Path == path && semver.IsValid(m.Version) {
			return m.Version
		}
	}
	return ""
}

// validHeaderPart reports whether s can be one ';'-separated part of a tracking header.
func validHeaderPart(s string) bool {
	if !httpguts.ValidHeaderFieldValue(s) {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
}

// sanitizeHeaderPart drops control characters and ';' and replaces whitespace with '-'.
func sanitizeHeaderPart(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == ';' || unicode.IsControl(r):
			return -1
		case unicode.IsSpace(r):
			return '-'
		}
		return r
	}, s)
}
