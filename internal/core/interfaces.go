package core

import "context"

// Installer drives a platform's native package installer
type Installer interface {
	// Name identifies the installer in logs
	Name() string

	// Install installs the artifact at artifactPath
	Install(ctx context.Context, candidate InstallationCandidate, artifactPath string, mode ConflictMode) (Result, error)

	// Uninstall removes an installed product
	Uninstall(ctx context.Context, product InstalledProduct) error

	// ShutdownIfRunning stops running instances of an installed product
	ShutdownIfRunning(ctx context.Context, product InstalledProduct) error

	// ShouldUninstall reports whether installing artifactPath would collide with product
	ShouldUninstall(ctx context.Context, product InstalledProduct, artifactPath string) (bool, error)

	// Launch starts the installed application of flavor
	Launch(ctx context.Context, flavor Flavor) error

	// SupportsAddAlongside reports whether a second copy can be installed next to the first
	SupportsAddAlongside(packageType PackageType) bool
}

// Inventory lists the catalog products present on this machine
type Inventory interface {
	ListInstalled(ctx context.Context, catalog Catalog) ([]InstalledProduct, error)
}
