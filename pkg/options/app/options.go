// Package app defines the command line options contract consumed by the
// application bootstrapper in pkg/infra/app.
package app

import "github.com/spf13/pflag"

// CliOptions is implemented by the options struct of an application binary.
type CliOptions interface {
	// Flags returns the flags grouped by section name.
	Flags() NamedFlagSets

	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate checks the options and returns a non-nil error on failure.
	Validate() error
}

// NamedFlagSets stores named flag sets in the order they were added.
type NamedFlagSets struct {
	// Order is an ordered list of flag set names.
	Order []string

	// FlagSets stores the flag sets by name.
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet returns the flag set with the given name, creating it if needed.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = map[string]*pflag.FlagSet{}
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		nfs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.Order = append(nfs.Order, name)
	}
	return nfs.FlagSets[name]
}
