package tool

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var errNoCompiler = errors.New("no C or C++ compiler found (set CC or CXX)")

// GCC-compatible drivers only; cl takes a different command line.
var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "tcc"}
	commonCxxCompilers = []string{"clang++", "g++", "icpx", "icpc", "clang", "gcc"}
)

var lookPath = exec.LookPath

// DetectFamily picks an executable from CC/CXX or the PATH and pairs it
// with the gcc or g++ file patterns.
func DetectFamily(needCxx bool) (Family, error) {
	family := GCC
	if needCxx {
		family = GXX
	}

	cc := os.Getenv("CC")
	cxx := os.Getenv("CXX")
	if needCxx && cxx != "" {
		return family.WithExecutable(cxx), nil
	}
	if !needCxx && cc != "" {
		return family.WithExecutable(cc), nil
	}

	compilersToTry := commonCCompilers
	if needCxx {
		compilersToTry = commonCxxCompilers
	}
	for _, compiler := range compilersToTry {
		if path, err := lookPath(compiler); err == nil {
			return family.WithExecutable(path), nil
		}
	}

	// fall back to whichever variable is set
	if cxx != "" {
		return GXX.WithExecutable(cxx), nil
	}
	if cc != "" {
		return family.WithExecutable(cc), nil
	}
	return Family{}, errNoCompiler
}

// IsCxx reports whether an executable name looks like a C++ driver.
func IsCxx(exe string) bool {
	base := strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
	return strings.Contains(base, "++") || strings.HasSuffix(base, "cxx") || base == "icpx" || base == "icpc"
}
