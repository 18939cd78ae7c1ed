package core

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
)

// Platform is a target operating system family
type Platform string

const (
	PlatformWindows     Platform = "Windows"
	PlatformMac         Platform = "Mac"
	PlatformLinux       Platform = "Linux"
	PlatformRaspberryPi Platform = "RaspberryPi"
	PlatformAndroid     Platform = "Android"
	PlatformIOS         Platform = "iOS"
)

// Platforms lists every known platform
var Platforms = []Platform{
	PlatformWindows,
	PlatformMac,
	PlatformLinux,
	PlatformRaspberryPi,
	PlatformAndroid,
	PlatformIOS,
}

// ParsePlatform matches a platform name case-insensitively
func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

const raspberryModelFile = "/sys/firmware/devicetree/base/model"

// CurrentPlatform detects the host platform
func CurrentPlatform() (Platform, error) {
	var model string
	if runtime.GOOS == "linux" && strings.HasPrefix(runtime.GOARCH, "arm") {
		if data, err := os.ReadFile(raspberryModelFile); err == nil {
			model = string(data)
		}
	}
	return DetectPlatform(runtime.GOOS, model)
}

// DetectPlatform maps a GOOS value and an optional device model to a Platform
func DetectPlatform(goos, model string) (Platform, error) {
	switch goos {
	case "windows":
		return PlatformWindows, nil
	case "darwin":
		return PlatformMac, nil
	case "linux":
		if strings.Contains(model, "Raspberry Pi") {
			return PlatformRaspberryPi, nil
		}
		return PlatformLinux, nil
	case "android":
		return PlatformAndroid, nil
	case "ios":
		return PlatformIOS, nil
	default:
		return "", fmt.Errorf("unsupported operating system %q", goos)
	}
}

// PackageType represents the type of package being installed
type PackageType string

const (
	PackageTypeAppX          PackageType = "AppX"
	PackageTypeMsi           PackageType = "Msi"
	PackageTypeMsiX          PackageType = "MsiX"
	PackageTypeStandaloneExe PackageType = "StandaloneExe"
	PackageTypeApp           PackageType = "App"
	PackageTypePkg           PackageType = "Pkg"
	PackageTypeDeb           PackageType = "Deb"
	PackageTypeApk           PackageType = "Apk"
	PackageTypeIpa           PackageType = "Ipa"
)

var packageTypesByPlatform = map[Platform][]PackageType{
	PlatformWindows:     {PackageTypeAppX, PackageTypeMsi, PackageTypeMsiX, PackageTypeStandaloneExe},
	PlatformMac:         {PackageTypeApp, PackageTypePkg},
	PlatformLinux:       {PackageTypeDeb},
	PlatformRaspberryPi: {PackageTypeDeb},
	PlatformAndroid:     {PackageTypeApk},
	PlatformIOS:         {PackageTypeIpa},
}

// SupportedOn reports whether packages of this type can be installed on p
func (t PackageType) SupportedOn(p Platform) bool {
	return slices.Contains(packageTypesByPlatform[p], t)
}

// ParsePackageType matches a package type name case-insensitively
func ParsePackageType(s string) (PackageType, error) {
	for _, types := range packageTypesByPlatform {
		for _, t := range types {
			if strings.EqualFold(string(t), strings.TrimSpace(s)) {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("unknown package type %q", s)
}

// InstalledProduct is something the platform inventory found on this machine
type InstalledProduct struct {
	ProductName string      `json:"product_name"`
	Version     Version     `json:"version"`
	PackageName string      `json:"package_name"`
	PackageType PackageType `json:"package_type"`
	Path        string      `json:"path,omitempty"`
}

// RepositoryCredentials are attached to every request made to one repository.
// A bearer token takes precedence over basic auth.
type RepositoryCredentials struct {
	BearerToken string `mapstructure:"bearer_token"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// IsZero reports whether no credentials are configured
func (c RepositoryCredentials) IsZero() bool {
	return c.BearerToken == "" && c.Username == ""
}

// CandidateRepository is a place build artifacts can be found
type CandidateRepository struct {
	Name        string                `mapstructure:"name"`
	Platforms   []Platform            `mapstructure:"platforms"`
	Folder      string                `mapstructure:"folder"`
	Server      string                `mapstructure:"server"`
	Credentials RepositoryCredentials `mapstructure:"credentials"`
	Products    []string              `mapstructure:"products"`
}

// IsValidFor reports whether the repository has a location and serves platform
func (r CandidateRepository) IsValidFor(platform Platform) bool {
	if r.Folder == "" && r.Server == "" {
		return false
	}
	return len(r.Platforms) == 0 || slices.Contains(r.Platforms, platform)
}

// Allows reports whether the repository may be asked for product
func (r CandidateRepository) Allows(product string) bool {
	if len(r.Products) == 0 {
		return true
	}
	return slices.ContainsFunc(r.Products, func(p string) bool {
		return strings.EqualFold(p, product)
	})
}

// Location returns the server URL, or the folder when no server is set
func (r CandidateRepository) Location() string {
	if r.Server != "" {
		return r.Server
	}
	return r.Folder
}

// ValidRepositories keeps the repositories usable on platform, in order
func ValidRepositories(repos []CandidateRepository, platform Platform) []CandidateRepository {
	var out []CandidateRepository
	for _, r := range repos {
		if r.IsValidFor(platform) {
			out = append(out, r)
		}
	}
	return out
}

// Result is the terminal outcome of an install or uninstall.
// An Error outcome is reported through the accompanying error value.
type Result int

const (
	ResultSucceeded Result = iota
	ResultSkipped
	ResultCanceled
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultSucceeded:
		return "succeeded"
	case ResultSkipped:
		return "skipped"
	case ResultCanceled:
		return "canceled"
	default:
		return "error"
	}
}

// ConflictMode decides what happens to an existing installation
type ConflictMode int

const (
	ConflictOverwrite ConflictMode = iota
	ConflictAdd
	ConflictCancel
)

func (m ConflictMode) String() string {
	switch m {
	case ConflictOverwrite:
		return "overwrite"
	case ConflictAdd:
		return "add"
	default:
		return "cancel"
	}
}

// ParseConflictMode reads an answer such as "o", "overwrite", "a" or "add".
// Anything else cancels.
func ParseConflictMode(s string) ConflictMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "o", "overwrite":
		return ConflictOverwrite
	case "a", "add":
		return ConflictAdd
	default:
		return ConflictCancel
	}
}

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneral         = 1
	ExitInvalidArgs     = 2
	ExitInstallFailed   = 3
	ExitUninstallFailed = 4
	ExitDatabase        = 5
	ExitPermission      = 6
	ExitNetwork         = 7
	ExitCommandNotFound = 8
	ExitCanceled        = 9
	ExitInterrupted     = 130
)
