/*
 *
 * shadowfold - a self-hiding layered resource resolver
 * Copyright (C) 2026 The shadowfold Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package resolver implements the layered lookup at the heart of shadowfold:
// a resource name is answered from the first of an ordered override list, the
// resolver's own bundle, or a delegate resolver. Unit resources carry a
// shadow alias (the unit suffix replaced with ".SCL.<suffix>") which is tried
// ahead of the primary name at every layer, so the resolver's own shadowed
// units beat identically named units a delegate might provide, and delegate
// answers that point back into our own bundle can be recognized and dropped.
package resolver

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/foldlib/shadowfold/lib/fsext"
	"github.com/foldlib/shadowfold/listing"
)

// DefaultUnitSuffix is the file suffix of code-unit resources; names ending
// in it are the ones that get a shadow alias.
const DefaultUnitSuffix = ".class"

// shadowMarker sits between the stripped unit name and the shadow suffix.
const shadowMarker = ".SCL."

// Delegate is the parent resolver consulted as the lowest-priority source.
type Delegate interface {
	// ResourceByName returns the delegate's first answer for name.
	ResourceByName(name string) (Address, bool)
	// AllResourcesByName returns every answer the delegate has for name,
	// highest priority first.
	AllResourcesByName(name string) []Address
}

// Options configures a Resolver.
type Options struct {
	// ShadowSuffix is the deployment's shadow suffix; "x" means our own
	// units are stored as "path/Name.SCL.x". Required.
	ShadowSuffix string
	// UnitSuffix overrides DefaultUnitSuffix.
	UnitSuffix string
	// SelfPath is the resolver's own bundle, a directory or an archive.
	// Required; use SelfPathFromAddress to derive it from the address of a
	// resource known to live in the bundle.
	SelfPath string
	// Overrides are higher-priority locations consulted before the bundle,
	// in order. Each entry is a directory or archive path.
	Overrides []string
	// Delegate is the parent resolver, may be nil.
	Delegate Delegate

	FS     fsext.Fs
	Logger logrus.FieldLogger
	// Cache is the listing cache to share; listing.Default when nil.
	Cache *listing.Cache
}

// Resolver answers resource names from the override/self/delegate layers.
// Lookup and LookupAll are safe for concurrent use; the administrative
// AddOverride calls are not and belong to the construction phase.
type Resolver struct {
	fs       fsext.Fs
	logger   logrus.FieldLogger
	listings *listing.Handle

	shadowSuffix string
	unitSuffix   string

	selfPath string
	// selfBase is selfPath plus the separator that a resource name would
	// follow it with; the own-bundle check is selfBase+name, by length and
	// prefix, nothing smarter.
	selfBase string

	overrides []string
	delegate  Delegate
}

// New builds a Resolver. The returned resolver holds a reference into the
// listing cache and must be closed when no longer needed.
func New(opts Options) (*Resolver, error) {
	if opts.ShadowSuffix == "" {
		return nil, errors.New("a shadow suffix is required")
	}
	if opts.SelfPath == "" {
		return nil, errors.New("the resolver's own bundle location is required")
	}

	fs := opts.FS
	if fs == nil {
		fs = fsext.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cache := opts.Cache
	if cache == nil {
		cache = listing.Default
	}
	unitSuffix := opts.UnitSuffix
	if unitSuffix == "" {
		unitSuffix = DefaultUnitSuffix
	}

	selfPath := fsext.Canonical(opts.SelfPath)
	r := &Resolver{
		fs:           fs,
		logger:       logger,
		listings:     cache.NewHandle(fs, logger),
		shadowSuffix: opts.ShadowSuffix,
		unitSuffix:   unitSuffix,
		selfPath:     selfPath,
		selfBase:     selfBase(fs, selfPath),
		delegate:     opts.Delegate,
	}
	for _, path := range opts.Overrides {
		r.AddOverridePath(path)
	}
	return r, nil
}

// Close releases this resolver's listing cache references.
func (r *Resolver) Close() error {
	return r.listings.Close()
}

// SelfPath returns the canonical path of the resolver's own bundle.
func (r *Resolver) SelfPath() string { return r.selfPath }

// HasOverrides reports whether any override location is configured.
func (r *Resolver) HasOverrides() bool { return len(r.overrides) > 0 }

// AddOverridePath appends a single directory or archive to the override list.
func (r *Resolver) AddOverridePath(path string) {
	path = fsext.Canonical(path)
	r.logger.WithField("location", path).Debug("Override location added")
	r.overrides = append(r.overrides, path)
}

// AddOverrideDir appends every archive directly inside dir to the override
// list, in directory order.
func (r *Resolver) AddOverrideDir(dir string) error {
	infos, err := fsext.ReadDir(r.fs, dir)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.Mode().IsRegular() && listing.IsArchivePath(info.Name()) {
			r.AddOverridePath(fsext.JoinFilePath(dir, info.Name()))
		}
	}
	return nil
}

// AliasFor returns the shadow alias for a unit resource name, or "" for
// names that are not unit resources.
func (r *Resolver) AliasFor(name string) string {
	if !strings.HasSuffix(name, r.unitSuffix) {
		return ""
	}
	return name[:len(name)-len(r.unitSuffix)] + shadowMarker + r.shadowSuffix
}

// InOwnBase reports whether addr points at the given name inside our own
// bundle. The check is structural: the address string must be exactly the
// bundle base followed by the name.
func (r *Resolver) InOwnBase(addr Address, name string) bool {
	if addr.IsZero() {
		return false
	}
	s := addr.String()
	return len(s) == len(r.selfBase)+len(name) && strings.HasPrefix(s, r.selfBase)
}

// Lookup finds the first address serving name, honoring layer precedence:
// overrides in order, then the bundle (only when no override is configured),
// then the delegate. With ownOnly set the delegate rules tighten: configured
// overrides suppress the delegate entirely, and with no overrides a delegate
// answer is only accepted if it points into our own bundle. The unit loader
// uses ownOnly so that it never silently serves delegate bytes it should
// instead have delegated the whole load for.
func (r *Resolver) Lookup(name string, ownOnly bool) (Address, bool) {
	alias := r.AliasFor(name)

	for _, loc := range r.overrides {
		if addr, ok := r.fromLocation(name, alias, loc); ok {
			return addr, true
		}
	}

	if len(r.overrides) > 0 {
		if ownOnly {
			return Address{}, false
		}
		if alias != "" {
			if addr, ok := r.lookupSkippingSelf(alias); ok {
				return addr, true
			}
		}
		return r.lookupSkippingSelf(name)
	}

	if addr, ok := r.fromLocation(name, alias, r.selfPath); ok {
		return addr, true
	}

	if alias != "" {
		if addr, ok := r.delegateResource(alias); ok && (!ownOnly || r.InOwnBase(addr, alias)) {
			return addr, true
		}
	}
	if addr, ok := r.delegateResource(name); ok && (!ownOnly || r.InOwnBase(addr, name)) {
		return addr, true
	}
	return Address{}, false
}

// LookupAll collects every address serving name, in precedence order:
// override hits, the bundle hit when no override is configured, then all
// delegate answers that do not point back into our own bundle, primary name
// first and alias after.
func (r *Resolver) LookupAll(name string) []Address {
	alias := r.AliasFor(name)

	var out []Address
	for _, loc := range r.overrides {
		if addr, ok := r.fromLocation(name, alias, loc); ok {
			out = append(out, addr)
		}
	}
	if len(r.overrides) == 0 {
		if addr, ok := r.fromLocation(name, alias, r.selfPath); ok {
			out = append(out, addr)
		}
	}

	if r.delegate != nil {
		for _, addr := range r.delegate.AllResourcesByName(name) {
			if !r.InOwnBase(addr, name) {
				out = append(out, addr)
			}
		}
		if alias != "" {
			for _, addr := range r.delegate.AllResourcesByName(alias) {
				if !r.InOwnBase(addr, alias) {
					out = append(out, addr)
				}
			}
		}
	}
	return out
}

// lookupSkippingSelf asks the delegate for name, refusing any answer that
// points back into our own bundle. If the delegate's first answer is our own
// bundle seen through the delegate chain, the rest of its answers are
// scanned for an independent one.
func (r *Resolver) lookupSkippingSelf(name string) (Address, bool) {
	addr, ok := r.delegateResource(name)
	if !ok {
		return Address{}, false
	}
	if !r.InOwnBase(addr, name) {
		return addr, true
	}
	for _, addr := range r.delegate.AllResourcesByName(name) {
		if !r.InOwnBase(addr, name) {
			return addr, true
		}
	}
	return Address{}, false
}

func (r *Resolver) delegateResource(name string) (Address, bool) {
	if r.delegate == nil {
		return Address{}, false
	}
	return r.delegate.ResourceByName(name)
}

// fromLocation checks a single location for the alias and then the primary
// name. Directories are probed live; archives go through the listing cache.
// All I/O failures mean "this location has no answer".
func (r *Resolver) fromLocation(name, alias, location string) (Address, bool) {
	if isDir, err := fsext.IsDir(r.fs, location); err == nil && isDir {
		if alias != "" && r.isRegular(fsext.JoinResourcePath(location, alias)) {
			return Address{Location: location, Name: alias}, true
		}
		if r.isRegular(fsext.JoinResourcePath(location, name)) {
			return Address{Location: location, Name: name}, true
		}
		return Address{}, false
	}

	if !r.isRegular(location) {
		return Address{}, false
	}
	canonical := fsext.Canonical(location)
	if alias != "" && r.listings.Contains(canonical, alias) {
		return Address{Location: canonical, Name: alias, Archive: true}, true
	}
	if r.listings.Contains(canonical, name) {
		return Address{Location: canonical, Name: name, Archive: true}, true
	}
	return Address{}, false
}

func (r *Resolver) isRegular(path string) bool {
	st, err := r.fs.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// selfBase derives the string every own-bundle address starts with. A bundle
// directory contributes "dir/", an archive "archive!/".
func selfBase(fs fsext.Fs, selfPath string) string {
	if isDir, err := fsext.IsDir(fs, selfPath); err == nil && isDir {
		return selfPath + "/"
	}
	return selfPath + archiveSep
}

// SelfPathFromAddress derives the bundle location from the address string of
// a resource known to live in the bundle, for hosts that only know "where
// they are" as the address their own code was loaded from. Accepted forms are
// "jar:file:<archive>!/<selfName>", "file:<dir>/<selfName>",
// "<archive>!/<selfName>" and "<dir>/<selfName>".
func SelfPathFromAddress(addr, selfName string) (string, error) {
	s := strings.TrimPrefix(addr, "jar:")
	s = strings.TrimPrefix(s, "file:")
	switch {
	case strings.HasSuffix(s, archiveSep+selfName):
		return s[:len(s)-len(archiveSep)-len(selfName)], nil
	case strings.HasSuffix(s, "/"+selfName):
		return s[:len(s)-1-len(selfName)], nil
	}
	return "", errors.New("own bundle location can't be derived from " + addr)
}
