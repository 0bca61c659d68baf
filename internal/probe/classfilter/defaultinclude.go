package classfilter

import (
	"archive/zip"
	"bufio"
	"io"
	"strings"
)

// ManifestMainClass returns the fully-qualified entry class for a jar,
// preferring the Spring-Boot-style "Start-Class" manifest attribute over
// the plain "Main-Class" attribute. ok is false when neither attribute is
// present or the archive cannot be read as a jar.
func ManifestMainClass(jarPath string) (class string, ok bool) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", false
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", false
		}
		defer rc.Close()

		attrs := parseManifestAttributes(rc)
		if v, ok := attrs["Start-Class"]; ok && v != "" {
			return v, true
		}
		if v, ok := attrs["Main-Class"]; ok && v != "" {
			return v, true
		}
		return "", false
	}
	return "", false
}

func parseManifestAttributes(r io.Reader) map[string]string {
	attrs := make(map[string]string)
	scanner := bufio.NewScanner(r)
	var lastKey string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, " ") && lastKey != "":
			// Manifest continuation line.
			attrs[lastKey] += strings.TrimPrefix(line, " ")
		default:
			idx := strings.Index(line, ":")
			if idx < 0 {
				continue
			}
			key := strings.TrimSpace(line[:idx])
			val := strings.TrimSpace(line[idx+1:])
			attrs[key] = val
			lastKey = key
		}
	}
	return attrs
}

// BasePackage strips the last dotted segment off a fully-qualified class
// name to get its containing package.
func BasePackage(fqcn string) string {
	idx := strings.LastIndex(fqcn, ".")
	if idx < 0 {
		return fqcn
	}
	return fqcn[:idx]
}

// DefaultInclude infers the default include pattern per §4.2: parse the
// process launch command, resolve the entry class (via jar manifest or a
// bare launch class), strip its last segment, and return "basePackage.**".
// launchCommand is the process's argv[0] (or last path element thereof);
// ok is false when no usable entry class could be determined.
func DefaultInclude(launchCommand string) (pattern string, ok bool) {
	launchCommand = strings.TrimSpace(launchCommand)
	if launchCommand == "" {
		return "", false
	}

	var entryClass string
	if strings.HasSuffix(strings.ToLower(launchCommand), ".jar") {
		class, found := ManifestMainClass(launchCommand)
		if !found {
			return "", false
		}
		entryClass = class
	} else {
		entryClass = launchCommand
	}

	base := BasePackage(entryClass)
	if base == "" || base == entryClass {
		return "", false
	}
	return base + ".**", true
}

// DefaultExclude is this instrumentation library's own package, excluded
// by default so the agent never instruments itself.
func DefaultExclude() string { return "reprodprobe.**" }
