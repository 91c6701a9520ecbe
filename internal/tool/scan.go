package tool

import (
	"bufio"
	"os"
	"regexp"
)

// includeRegex matches `#include "X"` and `#include <X>`. This is a line
// scan, not a preprocessor: conditionals and macro includes are not
// evaluated.
var includeRegex = regexp.MustCompile(`^\s*#\s*include\s*["<]([^">]+)[">]`)

// ScanIncludes returns the target of every include directive in file, in
// order of appearance.
func ScanIncludes(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var includes []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if m := includeRegex.FindSubmatch(sc.Bytes()); m != nil {
			includes = append(includes, string(m[1]))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return includes, nil
}
