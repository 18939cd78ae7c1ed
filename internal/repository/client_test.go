package repository

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quantmind-br/gman/internal/core"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hubkitWindows = core.Flavor{
	Platform:    core.PlatformWindows,
	ID:          "WindowsHubkit",
	PackageType: core.PackageTypeMsi,
	TeamCity:    core.TeamCityMetadata{BuildTypeID: "Gravio_HubKit4", ArtifactPath: "GravioHubKit.msi"},
}

func testCatalog() core.Catalog {
	return core.Catalog{{Name: "HubKit", Flavors: []core.Flavor{hubkitWindows}}}
}

func newTestClient(opts ...Option) *Client {
	log := zerolog.New(io.Discard)
	return NewClient(&log, opts...)
}

func versionSearch(v core.Version) core.SearchCandidate {
	return core.SearchCandidate{ProductName: "HubKit", Version: v, Flavor: hubkitWindows}
}

func TestURLs(t *testing.T) {
	assert.Equal(t,
		"https://tc.example.com/app/rest/buildTypes/id:Gravio_HubKit4/branches?locator=default:true,policy:ACTIVE_HISTORY_AND_ACTIVE_VCS_BRANCHES&fields=branch(name,builds(build(id,number,finishDate,artifacts($locator(count:1),count:1)),count,$locator(state:finished,status:SUCCESS,count:1)))",
		BranchesURL("tc.example.com", "Gravio_HubKit4"))

	assert.Equal(t,
		"https://tc.example.com/app/rest/builds?locator=default:false,policy:ALL_BRANCHES&locator=buildType:Gravio_HubKit4,count:1,number:5.2.3-7023",
		BuildsURL("https://tc.example.com/", "Gravio_HubKit4", "5.2.3-7023", "develop"))

	assert.Equal(t,
		"http://tc.local:8111/app/rest/builds?locator=default:false,policy:ALL_BRANCHES&locator=buildType:Gravio_HubKit4,count:1,branch:develop",
		BuildsURL("http://tc.local:8111", "Gravio_HubKit4", "", "develop"))

	assert.Equal(t,
		"https://tc.example.com/app/rest/builds?locator=default:false,policy:ALL_BRANCHES&locator=buildType:Gravio_HubKit4,count:1",
		BuildsURL("tc.example.com", "Gravio_HubKit4", "", ""))

	c := core.InstallationCandidate{
		RemoteID: "12345",
		Flavor: core.Flavor{TeamCity: core.TeamCityMetadata{
			BuildTypeID:  "Gravio_GravioStudio4ForMac",
			ArtifactPath: "appstore/Gravio Studio.pkg",
		}},
	}
	assert.Equal(t,
		"https://tc.example.com/repository/download/Gravio_GravioStudio4ForMac/12345:id/appstore/Gravio%20Studio.pkg",
		ArtifactURL("tc.example.com", c))
}

func TestEnsureScheme(t *testing.T) {
	assert.Equal(t, "https://tc.example.com", EnsureScheme("tc.example.com"))
	assert.Equal(t, "http://tc.example.com", EnsureScheme("http://tc.example.com/"))
	assert.Equal(t, "https://tc.example.com:8443", EnsureScheme(" tc.example.com:8443 "))
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, CheckStatus("r", http.StatusOK))
	assert.ErrorIs(t, CheckStatus("r", http.StatusUnauthorized), core.ErrUnauthorized)
	assert.ErrorIs(t, CheckStatus("r", http.StatusForbidden), core.ErrUnauthorized)
	assert.ErrorIs(t, CheckStatus("r", http.StatusNotFound), core.ErrEndpointNotFound)
	assert.ErrorIs(t, CheckStatus("r", http.StatusInternalServerError), core.ErrUnexpectedStatus)
}

func TestResolveOne_FallsBackPastUnauthorized(t *testing.T) {
	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer unauthorized.Close()

	var gotLocators []string
	var gotAccept, gotAuth string
	valid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app/rest/builds", r.URL.Path)
		gotLocators = r.URL.Query()["locator"]
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"count":1,"build":[{"id":4242,"buildTypeId":"Gravio_HubKit4","number":"5.2.3-7023","status":"SUCCESS","state":"finished","branchName":"develop"}]}`)
	}))
	defer valid.Close()

	repos := []core.CandidateRepository{
		{Name: "A", Server: unauthorized.URL},
		{Name: "B", Server: valid.URL, Credentials: core.RepositoryCredentials{BearerToken: "s3cret"}},
	}

	found, repo, err := newTestClient().ResolveOne(context.Background(), versionSearch("5.2.3-7023"), repos)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, repo)

	assert.Equal(t, "B", repo.Name)
	assert.Equal(t, "4242", found.RemoteID)
	assert.Equal(t, core.Version("5.2.3-7023"), found.Version)
	assert.Equal(t, "develop", found.Identifier)
	assert.Equal(t, valid.URL, found.RepoLocation)
	assert.Equal(t, "WindowsHubkit", found.Flavor.ID)

	assert.Equal(t, []string{"default:false,policy:ALL_BRANCHES", "buildType:Gravio_HubKit4,count:1,number:5.2.3-7023"}, gotLocators)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "Bearer s3cret", gotAuth)
}

func TestResolveOne_FirstSuccessWins(t *testing.T) {
	var secondCalled bool
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"count":1,"build":[{"id":1,"number":"1.0.0"}]}`)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		secondCalled = true
		io.WriteString(w, `{"count":1,"build":[{"id":2,"number":"2.0.0"}]}`)
	}))
	defer second.Close()

	found, repo, err := newTestClient().ResolveOne(context.Background(), versionSearch(""),
		[]core.CandidateRepository{{Name: "first", Server: first.URL}, {Name: "second", Server: second.URL}})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "first", repo.Name)
	assert.Equal(t, "1.0.0", found.Identifier, "number stands in for a missing branch name")
	assert.False(t, secondCalled)
}

func TestResolveOne_NotFound(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"count":0,"build":[]}`)
	}))
	defer empty.Close()
	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `<builds count="0"/>`)
	}))
	defer malformed.Close()
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	found, repo, err := newTestClient().ResolveOne(context.Background(), versionSearch("9.9.9"), []core.CandidateRepository{
		{Name: "empty", Server: empty.URL},
		{Name: "malformed", Server: malformed.URL},
		{Name: "missing", Server: missing.URL},
	})
	assert.NoError(t, err)
	assert.Nil(t, found)
	assert.Nil(t, repo)
}

func TestResolveOne_TransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	t.Run("reported when nothing is found", func(t *testing.T) {
		found, _, err := newTestClient().ResolveOne(context.Background(), versionSearch("1.0"),
			[]core.CandidateRepository{{Name: "dead", Server: deadURL}})
		assert.Nil(t, found)
		require.Error(t, err)

		var repoErr *core.RepositoryError
		assert.True(t, errors.As(err, &repoErr))
		assert.Equal(t, "dead", repoErr.Repository)
	})

	t.Run("does not stop the search", func(t *testing.T) {
		alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, `{"count":1,"build":[{"id":7,"number":"1.0","branchName":"master"}]}`)
		}))
		defer alive.Close()

		found, repo, err := newTestClient().ResolveOne(context.Background(), versionSearch("1.0"),
			[]core.CandidateRepository{{Name: "dead", Server: deadURL}, {Name: "alive", Server: alive.URL}})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "alive", repo.Name)
	})
}

func TestResolveOne_RepositoryFilters(t *testing.T) {
	_, _, err := newTestClient().ResolveOne(context.Background(), versionSearch("1.0"), nil)
	assert.ErrorIs(t, err, ErrNoRepositories)

	_, _, err = newTestClient().ResolveOne(context.Background(), versionSearch("1.0"), []core.CandidateRepository{
		{Name: "mac only", Server: "tc.example.com", Platforms: []core.Platform{core.PlatformMac}},
		{Name: "other product", Server: "tc.example.com", Products: []string{"Studio"}},
		{Name: "no location"},
	})
	assert.ErrorIs(t, err, ErrNoRepositories)
}

func TestResolveOne_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "builder" || pass != "pw" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		io.WriteString(w, `{"count":1,"build":[{"id":9,"number":"2.0","branchName":"master"}]}`)
	}))
	defer srv.Close()

	found, _, err := newTestClient().ResolveOne(context.Background(), versionSearch(""), []core.CandidateRepository{{
		Name:        "basic",
		Server:      srv.URL,
		Credentials: core.RepositoryCredentials{Username: "builder", Password: "pw"},
	}})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "9", found.RemoteID)
}

func TestEnumerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/rest/buildTypes/id:Gravio_HubKit4/branches" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "default:true,policy:ACTIVE_HISTORY_AND_ACTIVE_VCS_BRANCHES", r.URL.Query().Get("locator"))
		io.WriteString(w, `{"branch":[
			{"name":"master","builds":{"count":1,"build":[{"id":100,"number":"5.3.0-7100","finishDate":"20240101T000000+0000","artifacts":{"count":1}}]}},
			{"name":"develop","builds":{"count":1,"build":[{"id":90,"number":"5.2.3-7023"}]}},
			{"name":"stale","builds":{"count":0}}
		]}`)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/share/HubKit@Windows@WindowsHubkit@release@5.1.0@GravioHubKit.msi", []byte("x"), 0644))

	catalog := append(testCatalog(), core.Product{
		Name:    "Studio",
		Flavors: []core.Flavor{{Platform: core.PlatformWindows, ID: "WindowsStudio", TeamCity: core.TeamCityMetadata{BuildTypeID: "Gravio_Studio"}}},
	})
	repos := []core.CandidateRepository{
		{Name: "tc", Server: srv.URL},
		{Name: "share", Folder: "/share"},
		{Name: "mac", Server: srv.URL, Platforms: []core.Platform{core.PlatformMac}},
	}

	got := newTestClient(WithFs(fs)).Enumerate(context.Background(), core.PlatformWindows, catalog, repos)
	require.Len(t, got, 3)

	assert.Equal(t, "100", got[0].RemoteID)
	assert.Equal(t, "master", got[0].Identifier)
	assert.Equal(t, core.Version("5.3.0-7100"), got[0].Version)
	assert.Equal(t, "HubKit", got[0].ProductName)
	assert.Equal(t, "develop", got[1].Identifier)

	assert.Equal(t, "release", got[2].Identifier)
	assert.Equal(t, "/share", got[2].RepoLocation)
	assert.Equal(t, "/share/HubKit@Windows@WindowsHubkit@release@5.1.0@GravioHubKit.msi", got[2].RemoteID)
}

func TestResolveOne_Folder(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{
		"HubKit@Windows@WindowsHubkit@develop@5.2.3-7023@GravioHubKit.msi",
		"HubKit@Windows@WindowsHubkit@master@5.3.0-7100@GravioHubKit.msi",
	} {
		require.NoError(t, afero.WriteFile(fs, "/share/"+name, []byte("x"), 0644))
	}

	repos := []core.CandidateRepository{{Name: "share", Folder: "/share"}}
	found, repo, err := newTestClient(WithFs(fs)).ResolveOne(context.Background(), versionSearch("5.2.3-7023"), repos)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "share", repo.Name)
	assert.Equal(t, "develop", found.Identifier)
	assert.Equal(t, "/share/HubKit@Windows@WindowsHubkit@develop@5.2.3-7023@GravioHubKit.msi", found.RemoteID)

	found, _, err = newTestClient(WithFs(fs)).ResolveOne(context.Background(), versionSearch("1.0"), repos)
	assert.NoError(t, err)
	assert.Nil(t, found)
}
