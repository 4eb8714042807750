// Package log builds the slog loggers used across skycrawl.
//
// Every logger is wrapped in a SecureHandler that masks credentials before
// they reach the output: app passwords, access and refresh JWTs, bearer
// headers and anything logged under a credential-like key. This holds in
// verbose mode too, so debug logs of a crawl can be shared.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Debug("logged in", "handle", "alice.example.com", "accessJwt", tok) // accessJwt is masked
//	slog.SetDefault(logger)
//
// The same logger is handed to the tornago daemon when --tor is used.
package log
