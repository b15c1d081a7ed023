// Package config holds the settings of a domainmap run: the seed domains,
// crawl tuning, output and storage options, and per-site settings loaded from
// a .domainmap file.
package config
