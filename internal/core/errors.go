package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a product, flavor or build does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned for 401 and 403 repository responses
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEndpointNotFound is returned for 404 repository responses
	ErrEndpointNotFound = errors.New("endpoint not found")
	// ErrUnexpectedStatus is returned for any other non-success response
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrCanceled is returned when the user or a native installer cancels
	ErrCanceled = errors.New("canceled")
)

// RepositoryError is a failure talking to one repository
type RepositoryError struct {
	Repository string
	StatusCode int
	Err        error
}

func (e *RepositoryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("repository %s: status %d: %v", e.Repository, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("repository %s: %v", e.Repository, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// DownloadError aborts an acquisition
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// InstallError is a failed platform install
type InstallError struct {
	Product string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Product, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// UninstallError is a failed stop or removal of an installed product
type UninstallError struct {
	Product string
	Err     error
}

func (e *UninstallError) Error() string {
	return fmt.Sprintf("uninstall %s: %v", e.Product, e.Err)
}

func (e *UninstallError) Unwrap() error { return e.Err }
