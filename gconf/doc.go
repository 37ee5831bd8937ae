/*
Package gconf implements a configuration store intended to be used as a global,
in-database configuration.

Each package that needs configuration declares a type implementing the
Configuration interface and stores a single instance of it under its package
name. Configuration is loaded from the "conf" section of the genesis file.

Not being able to get a configuration value is a critical condition for the
ledger and there is no recovery path for the client. Ledger must be configured
correctly before any transaction is executed.
*/
package gconf
