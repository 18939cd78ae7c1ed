package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/quantmind-br/gman/internal/core"
)

// Color scheme for gman
var (
	// Primary actions
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
	Info    = color.New(color.FgCyan)

	// Secondary actions
	Highlight = color.New(color.FgHiCyan, color.Bold)
	Muted     = color.New(color.Faint)
	Bold      = color.New(color.Bold)

	// Status indicators
	CheckMark = color.GreenString("✓")
	CrossMark = color.RedString("✗")
	Arrow     = color.CyanString("→")
	Bullet    = color.HiBlackString("•")

	// Package type colors, one per installer family
	TypeWindows   = color.New(color.FgBlue)
	TypeWindowsUI = color.New(color.FgHiBlue)
	TypeMac       = color.New(color.FgMagenta)
	TypeLinux     = color.New(color.FgCyan)
	TypeMobile    = color.New(color.FgYellow)
)

// InitColors initializes color settings based on environment and the
// configured mode ("auto", "always" or "never")
func InitColors(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
		return
	case "never":
		color.NoColor = true
		return
	}

	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	// Respect TERM environment variable
	if os.Getenv("TERM") == "dumb" {
		color.NoColor = true
	}
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, format string, args ...interface{}) {
	Success.Fprintf(w, "%s %s\n", CheckMark, fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(w io.Writer, format string, args ...interface{}) {
	Error.Fprintf(w, "%s Error: %s\n", CrossMark, fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, format string, args ...interface{}) {
	Warning.Fprintf(w, "Warning: %s\n", fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, format string, args ...interface{}) {
	Info.Fprintf(w, "%s %s\n", Arrow, fmt.Sprintf(format, args...))
}

// PrintKeyValue prints a key-value pair with color
func PrintKeyValue(w io.Writer, key, value string) {
	Bold.Fprintf(w, "%s: ", key)
	fmt.Fprintln(w, value)
}

// PrintHeader prints a section header
func PrintHeader(w io.Writer, text string) {
	fmt.Fprintln(w)
	Bold.Fprintln(w, text)
	Muted.Fprintln(w, "────────────────────────────────────────")
}

// PrintList prints a bulleted list
func PrintList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", Bullet, item)
	}
}

// PrintCheck prints one doctor line
func PrintCheck(w io.Writer, ok bool, format string, args ...interface{}) {
	mark := CheckMark
	if !ok {
		mark = CrossMark
	}
	fmt.Fprintf(w, "  %s %s\n", mark, fmt.Sprintf(format, args...))
}

// ColorizePackageType returns a colored package type string
func ColorizePackageType(pkgType core.PackageType) string {
	s := string(pkgType)
	switch pkgType {
	case core.PackageTypeMsi, core.PackageTypeStandaloneExe:
		return TypeWindows.Sprint(s)
	case core.PackageTypeAppX, core.PackageTypeMsiX:
		return TypeWindowsUI.Sprint(s)
	case core.PackageTypeApp, core.PackageTypePkg:
		return TypeMac.Sprint(s)
	case core.PackageTypeDeb:
		return TypeLinux.Sprint(s)
	case core.PackageTypeApk, core.PackageTypeIpa:
		return TypeMobile.Sprint(s)
	default:
		return s
	}
}

// ColorizeResult returns a colored install or uninstall outcome
func ColorizeResult(result string) string {
	switch result {
	case core.ResultSucceeded.String():
		return Success.Sprint(result)
	case core.ResultSkipped.String():
		return Muted.Sprint(result)
	case core.ResultCanceled.String():
		return Warning.Sprint(result)
	case core.ResultError.String():
		return Error.Sprint(result)
	default:
		return result
	}
}

// DisableColors disables all color output
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output
func EnableColors() {
	color.NoColor = false
}

// AreColorsEnabled returns whether colors are currently enabled
func AreColorsEnabled() bool {
	return !color.NoColor
}
