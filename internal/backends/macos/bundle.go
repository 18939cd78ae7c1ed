package macos

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/micromdm/plist"
	"github.com/spf13/afero"
)

const binaryPlistHeader = "bplist00"

// bundleInfo is the subset of Contents/Info.plist gman reads
type bundleInfo struct {
	CFBundleIdentifier         string `plist:"CFBundleIdentifier"`
	CFBundleExecutable         string `plist:"CFBundleExecutable"`
	CFBundleName               string `plist:"CFBundleName"`
	CFBundleShortVersionString string `plist:"CFBundleShortVersionString"`
	CFBundleVersion            string `plist:"CFBundleVersion"`
}

// Version joins the marketing and build versions, e.g. "5.2" + "7023" = "5.2.7023"
func (b bundleInfo) Version() string {
	switch {
	case b.CFBundleShortVersionString == "":
		return b.CFBundleVersion
	case b.CFBundleVersion == "":
		return b.CFBundleShortVersionString
	default:
		return b.CFBundleShortVersionString + "." + b.CFBundleVersion
	}
}

func infoPlistPath(appPath string) string {
	return filepath.Join(appPath, "Contents", "Info.plist")
}

// readBundleInfo decodes the Info.plist of the bundle at appPath, binary or XML
func readBundleInfo(fs afero.Fs, appPath string) (bundleInfo, error) {
	data, err := afero.ReadFile(fs, infoPlistPath(appPath))
	if err != nil {
		return bundleInfo{}, err
	}
	return decodeBundleInfo(data)
}

func decodeBundleInfo(data []byte) (bundleInfo, error) {
	var info bundleInfo

	if bytes.HasPrefix(data, []byte(binaryPlistHeader)) {
		if err := plist.NewBinaryDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
			return bundleInfo{}, fmt.Errorf("decode binary plist: %w", err)
		}
		return info, nil
	}

	if err := plist.NewXMLDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return bundleInfo{}, fmt.Errorf("decode XML plist: %w", err)
	}
	return info, nil
}

// listBundles returns the .app directories directly inside dir
func listBundles(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	var bundles []string
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".app") {
			bundles = append(bundles, filepath.Join(dir, e.Name()))
		}
	}
	return bundles, nil
}
