package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is empty")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- cache ------------------
var (
	ErrCacheMiss = errors.New("cache miss")
)

// ----------------- sync engine ------------------
var (
	ErrMissingSKU         = errors.New("product sku is required")
	ErrMissingName        = errors.New("product name is required")
	ErrNoMultiplier       = errors.New("market has neither live rate nor static multiplier")
	ErrMarketDisabled     = errors.New("market is disabled")
	ErrUnknownMarket      = errors.New("unknown market code")
	ErrJobInProgress      = errors.New("a bulk job is already in progress")
	ErrEmptyJob           = errors.New("bulk job contains no rows")
	ErrMerchantID         = errors.New("merchant id is not configured")
	ErrMerchantCredential = errors.New("merchant credentials are not configured")
)
