package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quantmind-br/gman/internal/core"
)

const (
	branchesLocator = "default:true,policy:ACTIVE_HISTORY_AND_ACTIVE_VCS_BRANCHES"
	branchesFields  = "branch(name,builds(build(id,number,finishDate,artifacts($locator(count:1),count:1)),count,$locator(state:finished,status:SUCCESS,count:1)))"
	buildsLocator   = "default:false,policy:ALL_BRANCHES"
)

// buildsPage is the body of /app/rest/builds and of a branch's builds field
type buildsPage struct {
	Count  int     `json:"count"`
	Builds []build `json:"build"`
}

type build struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	BranchName  string `json:"branchName"`
	BuildTypeID string `json:"buildTypeId"`
	Status      string `json:"status"`
	State       string `json:"state"`
	FinishDate  string `json:"finishDate"`
}

// branchesPage is the body of /app/rest/buildTypes/id:X/branches
type branchesPage struct {
	Branches []branch `json:"branch"`
}

type branch struct {
	Name   string     `json:"name"`
	Builds buildsPage `json:"builds"`
}

// EnsureScheme prefixes server with https:// when no scheme is given
// and drops trailing slashes
func EnsureScheme(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	return server
}

// BranchesURL lists the latest successful build of every active branch of a build type
func BranchesURL(server, buildTypeID string) string {
	return fmt.Sprintf("%s/app/rest/buildTypes/id:%s/branches?locator=%s&fields=%s",
		EnsureScheme(server), url.PathEscape(buildTypeID), branchesLocator, branchesFields)
}

// BuildsURL selects at most one build of a build type, filtered by build
// number when version is set, else by branch when identifier is set
func BuildsURL(server, buildTypeID string, version core.Version, identifier string) string {
	locator := "buildType:" + url.QueryEscape(buildTypeID) + ",count:1"
	switch {
	case !version.IsZero():
		locator += ",number:" + url.QueryEscape(string(version))
	case identifier != "":
		locator += ",branch:" + url.QueryEscape(identifier)
	}
	return fmt.Sprintf("%s/app/rest/builds?locator=%s&locator=%s", EnsureScheme(server), buildsLocator, locator)
}

// ArtifactURL is the download location of a candidate's artifact
func ArtifactURL(server string, c core.InstallationCandidate) string {
	segments := strings.Split(strings.Trim(strings.ReplaceAll(c.Flavor.TeamCity.ArtifactPath, "\\", "/"), "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	artifact := strings.Join(segments, "/")
	return fmt.Sprintf("%s/repository/download/%s/%s:id/%s",
		EnsureScheme(server), url.PathEscape(c.Flavor.TeamCity.BuildTypeID), url.PathEscape(c.RemoteID), artifact)
}

// Authorize attaches the repository's credentials to req
func Authorize(req *http.Request, creds core.RepositoryCredentials) {
	switch {
	case creds.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+creds.BearerToken)
	case creds.Username != "":
		req.SetBasicAuth(creds.Username, creds.Password)
	}
}

// CheckStatus classifies a repository response status
func CheckStatus(repo string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &core.RepositoryError{Repository: repo, StatusCode: code, Err: core.ErrUnauthorized}
	case code == http.StatusNotFound:
		return &core.RepositoryError{Repository: repo, StatusCode: code, Err: core.ErrEndpointNotFound}
	default:
		return &core.RepositoryError{Repository: repo, StatusCode: code, Err: core.ErrUnexpectedStatus}
	}
}

// getJSON fetches u from repo and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, repo core.CandidateRepository, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &core.RepositoryError{Repository: repo.Name, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	Authorize(req, repo.Credentials)

	c.log.Debug().Str("repository", repo.Name).Str("url", u).Msg("querying repository")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.RepositoryError{Repository: repo.Name, Err: err}
	}
	defer resp.Body.Close()

	if err := CheckStatus(repo.Name, resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.RepositoryError{Repository: repo.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// enumerateServer lists the latest successful build of every branch of flavor
func (c *Client) enumerateServer(ctx context.Context, repo core.CandidateRepository, product string, flavor core.Flavor) ([]core.InstallationCandidate, error) {
	var page branchesPage
	if err := c.getJSON(ctx, repo, BranchesURL(repo.Server, flavor.TeamCity.BuildTypeID), &page); err != nil {
		return nil, err
	}

	var out []core.InstallationCandidate
	for _, br := range page.Branches {
		for _, b := range br.Builds.Builds {
			out = append(out, core.InstallationCandidate{
				RemoteID:     strconv.FormatInt(b.ID, 10),
				RepoLocation: repo.Location(),
				ProductName:  product,
				Version:      core.ParseVersion(b.Number),
				Identifier:   br.Name,
				Flavor:       flavor,
			})
		}
	}
	return out, nil
}

// resolveServer asks the server for the single build matching search
func (c *Client) resolveServer(ctx context.Context, repo core.CandidateRepository, search core.SearchCandidate) (*core.InstallationCandidate, error) {
	u := BuildsURL(repo.Server, search.Flavor.TeamCity.BuildTypeID, search.Version, search.Identifier)

	var page buildsPage
	if err := c.getJSON(ctx, repo, u, &page); err != nil {
		return nil, err
	}
	if len(page.Builds) == 0 {
		return nil, nil
	}

	b := page.Builds[0]
	identifier := b.BranchName
	if identifier == "" {
		identifier = b.Number
	}

	return &core.InstallationCandidate{
		RemoteID:     strconv.FormatInt(b.ID, 10),
		RepoLocation: repo.Location(),
		ProductName:  search.ProductName,
		Version:      core.ParseVersion(b.Number),
		Identifier:   identifier,
		Flavor:       search.Flavor,
	}, nil
}
