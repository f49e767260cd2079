package domain

import "errors"

var (
	// ErrNoRatesAvailable means every configured account of a provider
	// failed (or was circuit-broken) for a rate lookup.
	ErrNoRatesAvailable = errors.New("no rates available from provider")

	// ErrUnresolvedRate means a conversion depended on a USD rate that
	// neither the store nor the provider could supply.
	ErrUnresolvedRate = errors.New("rate could not be resolved")

	// ErrAllProvidersUnavailable is raised by download reads once every
	// configured provider has been marked unavailable for the run.
	ErrAllProvidersUnavailable = errors.New("all rate providers are unavailable")

	ErrStoreExists   = errors.New("rate store already exists")
	ErrStoreNotFound = errors.New("rate store does not exist")

	ErrUnknownProvider = errors.New("unknown rate provider")
)
