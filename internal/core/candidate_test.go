package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hubkitCatalog() Catalog {
	return Catalog{
		{
			Name: "HubKit",
			Flavors: []Flavor{
				{
					Platform:    PlatformWindows,
					ID:          "WindowsHubkit",
					PackageType: PackageTypeMsi,
					TeamCity:    TeamCityMetadata{BuildTypeID: "Gravio_GravioHubKit4", ArtifactPath: "GravioHubKit.msi"},
				},
				{
					Platform:    PlatformMac,
					ID:          "MacHubkit",
					PackageType: PackageTypeApp,
					TeamCity:    TeamCityMetadata{BuildTypeID: "Gravio_GravioHubKit4Mac", ArtifactPath: "build/out/GravioHubKit.dmg"},
				},
			},
		},
	}
}

func TestCachedFileName(t *testing.T) {
	c := InstallationCandidate{
		ProductName: "HubKit",
		Identifier:  "develop",
		Version:     "5.2.3-7023",
		Flavor:      hubkitCatalog()[0].Flavors[0],
	}

	assert.Equal(t, "HubKit@Windows@WindowsHubkit@develop@5.2.3-7023@GravioHubKit.msi", c.CachedFileName())
}

func TestCachedFileName_NestedArtifactPath(t *testing.T) {
	c := InstallationCandidate{
		ProductName: "HubKit",
		Identifier:  "master",
		Version:     "5.3.0-7100",
		Flavor:      hubkitCatalog()[0].Flavors[1],
	}

	assert.Equal(t, "HubKit@Mac@MacHubkit@master@5.3.0-7100@GravioHubKit.dmg", c.CachedFileName())
}

func TestParseCachedFileName_RoundTrip(t *testing.T) {
	candidates := []InstallationCandidate{
		{ProductName: "HubKit", Identifier: "develop", Version: "5.2.3-7023", Flavor: hubkitCatalog()[0].Flavors[0]},
		{ProductName: "HubKit", Identifier: "feature-x", Version: "not-a-version", Flavor: hubkitCatalog()[0].Flavors[1]},
		{ProductName: "Studio", Identifier: "", Version: "", Flavor: Flavor{Platform: PlatformLinux, ID: "deb"}},
		{ProductName: "HubKit", Identifier: "feature/login", Version: "5.2.0", Flavor: hubkitCatalog()[0].Flavors[0]},
		{ProductName: "HubKit", Identifier: `users\me@host 100%`, Version: "5.2.0", Flavor: hubkitCatalog()[0].Flavors[0]},
	}

	for _, c := range candidates {
		t.Run(c.CachedFileName(), func(t *testing.T) {
			parsed, err := ParseCachedFileName(c.CachedFileName())
			require.NoError(t, err)

			type fields struct{ Product, Flavor, Identifier, Version string }
			want := fields{c.ProductName, c.Flavor.ID, c.Identifier, string(c.Version)}
			got := fields{parsed.ProductName, parsed.Flavor.ID, parsed.Identifier, string(parsed.Version)}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, c.CachedFileName(), parsed.CachedFileName())
		})
	}
}

func TestCachedFileName_EscapesIdentifier(t *testing.T) {
	c := InstallationCandidate{
		ProductName: "HubKit",
		Identifier:  "feature/login",
		Version:     "5.2.3-7023",
		Flavor:      hubkitCatalog()[0].Flavors[0],
	}

	assert.Equal(t, "HubKit@Windows@WindowsHubkit@feature%2Flogin@5.2.3-7023@GravioHubKit.msi", c.CachedFileName())
	assert.Equal(t, "a%25b%40c%5Cd", EscapeIdentifier(`a%b@c\d`))
}

func TestParseCachedFileName_FieldCount(t *testing.T) {
	for _, name := range []string{
		"HubKit@Windows@WindowsHubkit@develop@5.2.3",
		"HubKit@Windows@WindowsHubkit@develop@5.2.3@a.msi@extra",
		"GravioHubKit.msi",
		"",
	} {
		_, err := ParseCachedFileName(name)
		assert.Error(t, err, name)
	}
}

func TestNewSearchCandidate(t *testing.T) {
	catalog := hubkitCatalog()

	t.Run("default flavor for platform", func(t *testing.T) {
		s, err := NewSearchCandidate(catalog, PlatformMac, "hubkit", "", "develop", "")
		require.NoError(t, err)
		assert.Equal(t, "HubKit", s.ProductName)
		assert.Equal(t, "MacHubkit", s.Flavor.ID)
	})

	t.Run("explicit flavor", func(t *testing.T) {
		s, err := NewSearchCandidate(catalog, PlatformWindows, "HubKit", "5.2.3", "", "windowshubkit")
		require.NoError(t, err)
		assert.Equal(t, "WindowsHubkit", s.Flavor.ID)
		assert.Equal(t, Version("5.2.3"), s.Version)
	})

	t.Run("flavor of another platform", func(t *testing.T) {
		_, err := NewSearchCandidate(catalog, PlatformWindows, "HubKit", "", "", "MacHubkit")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("same flavor id on two platforms", func(t *testing.T) {
		shared := Catalog{{
			Name: "HubKit",
			Flavors: []Flavor{
				{Platform: PlatformWindows, ID: "Hubkit", PackageType: PackageTypeMsi},
				{Platform: PlatformMac, ID: "Hubkit", PackageType: PackageTypeApp},
			},
		}}

		mac, err := NewSearchCandidate(shared, PlatformMac, "HubKit", "", "", "hubkit")
		require.NoError(t, err)
		assert.Equal(t, PlatformMac, mac.Flavor.Platform)
		assert.Equal(t, PackageTypeApp, mac.Flavor.PackageType)

		win, err := NewSearchCandidate(shared, PlatformWindows, "HubKit", "", "", "Hubkit")
		require.NoError(t, err)
		assert.Equal(t, PackageTypeMsi, win.Flavor.PackageType)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := NewSearchCandidate(catalog, PlatformWindows, "Nope", "", "", "")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("no flavor for platform", func(t *testing.T) {
		_, err := NewSearchCandidate(catalog, PlatformLinux, "HubKit", "", "", "")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
