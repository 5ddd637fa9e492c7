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

// Package loader is the outward-facing side of shadowfold. It translates
// fully-qualified unit names into resource names, resolves them through the
// layered resolver, materializes the winning address into bytes and hands
// them to the hosting runtime. It also enforces the exclusion-prefix policy:
// for selected name prefixes a failed local resolution is final and never
// falls back to the delegate's own load path.
package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/foldlib/shadowfold/lib/fsext"
	"github.com/foldlib/shadowfold/listing"
	"github.com/foldlib/shadowfold/resolver"
)

// Unit is a loaded code unit as represented by the hosting runtime. The
// loader never looks inside one, it only moves them around.
type Unit interface {
	Name() string
}

// Runtime is the execution engine that units are defined into. It is an
// external collaborator; the loader only needs these three operations.
type Runtime interface {
	// DefinedUnit returns an already-loaded unit, making LoadUnit
	// idempotent.
	DefinedUnit(name string) (Unit, bool)
	// DefineUnit materializes raw bytes into a loaded unit.
	DefineUnit(name string, data []byte) (Unit, error)
	// ResolveUnit performs the runtime's optional post-load resolution.
	ResolveUnit(u Unit) error
}

// Delegate is the parent loader: the resource lookups of a plain resolver
// delegate plus the full load fallback.
type Delegate interface {
	resolver.Delegate
	// LoadUnit performs the delegate's own complete load for a
	// fully-qualified unit name.
	LoadUnit(name string, resolve bool) (Unit, error)
}

// UnitNotFoundError is returned when no layer can serve a unit and either an
// exclusion rule applies or the delegate fails too.
type UnitNotFoundError struct {
	Name string
}

func (e UnitNotFoundError) Error() string {
	return fmt.Sprintf("unit %q not found", e.Name)
}

// Options configures a Loader.
type Options struct {
	// ShadowSuffix, UnitSuffix, SelfPath and Overrides configure the
	// underlying resolver, see resolver.Options.
	ShadowSuffix string
	UnitSuffix   string
	SelfPath     string
	Overrides    []string

	// Exclusions are unit name prefixes (dotted or slashed) for which the
	// delegate load fallback is forbidden.
	Exclusions []string

	// Runtime receives the materialized units. Required for LoadUnit.
	Runtime Runtime
	// Delegate is the parent loader, may be nil.
	Delegate Delegate

	FS     fsext.Fs
	Logger logrus.FieldLogger
	Cache  *listing.Cache
}

// Loader resolves and materializes units and resources.
type Loader struct {
	fs       fsext.Fs
	logger   logrus.FieldLogger
	res      *resolver.Resolver
	runtime  Runtime
	delegate Delegate

	unitSuffix string
	// exclusions are normalized to slash form with a trailing slash, so a
	// simple prefix match is exact at name-segment boundaries.
	exclusions []string
}

// New builds a Loader and its underlying resolver. Close releases the
// resolver's listing cache references.
func New(opts Options) (*Loader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	var delegate resolver.Delegate
	if opts.Delegate != nil {
		delegate = opts.Delegate
	}
	res, err := resolver.New(resolver.Options{
		ShadowSuffix: opts.ShadowSuffix,
		UnitSuffix:   opts.UnitSuffix,
		SelfPath:     opts.SelfPath,
		Overrides:    opts.Overrides,
		Delegate:     delegate,
		FS:           opts.FS,
		Logger:       logger,
		Cache:        opts.Cache,
	})
	if err != nil {
		return nil, err
	}

	unitSuffix := opts.UnitSuffix
	if unitSuffix == "" {
		unitSuffix = resolver.DefaultUnitSuffix
	}

	l := &Loader{
		fs:         fsOrOs(opts.FS),
		logger:     logger,
		res:        res,
		runtime:    opts.Runtime,
		delegate:   opts.Delegate,
		unitSuffix: unitSuffix,
	}
	for _, prefix := range opts.Exclusions {
		l.exclusions = append(l.exclusions, normalizePrefix(prefix))
	}
	return l, nil
}

func fsOrOs(fs fsext.Fs) fsext.Fs {
	if fs == nil {
		return fsext.NewOsFs()
	}
	return fs
}

// normalizePrefix turns "fold." or "fold" into "fold/".
func normalizePrefix(prefix string) string {
	prefix = strings.ReplaceAll(prefix, ".", "/")
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// Close releases the underlying resolver.
func (l *Loader) Close() error {
	return l.res.Close()
}

// Resolver exposes the underlying resolver for administrative use.
func (l *Loader) Resolver() *resolver.Resolver { return l.res }

// AddOverridePath appends a single directory or archive to the override list.
func (l *Loader) AddOverridePath(path string) {
	l.res.AddOverridePath(path)
}

// AddOverrideDir appends every archive directly inside dir to the override
// list.
func (l *Loader) AddOverrideDir(dir string) error {
	return l.res.AddOverrideDir(dir)
}

// ResourceByName returns the first address serving the named resource.
func (l *Loader) ResourceByName(name string) (resolver.Address, bool) {
	return l.res.Lookup(name, false)
}

// AllResourcesByName returns every address serving the named resource, in
// precedence order.
func (l *Loader) AllResourcesByName(name string) []resolver.Address {
	return l.res.LookupAll(name)
}

// LoadUnit loads the fully-qualified (dotted) unit name. Already-loaded units
// are returned as-is. A unit resolved to an address is read fully and defined
// into the runtime, with the runtime's resolution step run eagerly when
// resolve is set. When no local layer answers, the load is handed to the
// delegate wholesale, unless the name matches an exclusion prefix, in which
// case the result is UnitNotFoundError.
func (l *Loader) LoadUnit(qualifiedName string, resolve bool) (Unit, error) {
	if l.runtime == nil {
		return nil, fmt.Errorf("loading unit %q: no runtime configured", qualifiedName)
	}
	if u, ok := l.runtime.DefinedUnit(qualifiedName); ok {
		return u, nil
	}

	resName := strings.ReplaceAll(qualifiedName, ".", "/") + l.unitSuffix
	addr, ok := l.res.Lookup(resName, true)
	if !ok {
		if l.excluded(resName) || l.delegate == nil {
			return nil, UnitNotFoundError{Name: qualifiedName}
		}
		return l.delegate.LoadUnit(qualifiedName, resolve)
	}

	data, err := l.materialize(addr)
	if err != nil {
		return nil, fmt.Errorf("reading unit %q from %s: %w", qualifiedName, addr, err)
	}

	u, err := l.runtime.DefineUnit(qualifiedName, data)
	if err != nil {
		return nil, fmt.Errorf("defining unit %q: %w", qualifiedName, err)
	}
	if resolve {
		if err := l.runtime.ResolveUnit(u); err != nil {
			return nil, fmt.Errorf("resolving unit %q: %w", qualifiedName, err)
		}
	}
	l.logger.WithFields(logrus.Fields{"unit": qualifiedName, "address": addr.String()}).Debug("Unit loaded")
	return u, nil
}

// materialize reads the addressed bytes in full. Archive entry sizes are not
// trusted, the read grows as needed.
func (l *Loader) materialize(addr resolver.Address) ([]byte, error) {
	rc, err := addr.Open(l.fs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (l *Loader) excluded(resName string) bool {
	for _, prefix := range l.exclusions {
		if strings.HasPrefix(resName, prefix) {
			return true
		}
	}
	return false
}
