// Package config holds the configuration of an extraction run: where the dataset lives, which
// category grouping is extracted and where the images, annotations and manifests are written.
// Values come from a YAML file layered over NewConfig defaults and are overridden by CLI flags.
package config
